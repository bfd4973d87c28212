package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGate(); err != nil {
		return err
	}
	if err := c.validateExcerpt(); err != nil {
		return err
	}
	if err := c.validateLinking(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateGate() error {
	if c.Gate.AutoConfirmThreshold < 0 || c.Gate.AutoConfirmThreshold > 1 {
		return errors.New("gate.auto_confirm_threshold must be between 0 and 1")
	}
	if c.Gate.LowConfidenceThreshold < 0 || c.Gate.LowConfidenceThreshold > 1 {
		return errors.New("gate.low_confidence_threshold must be between 0 and 1")
	}
	if c.Gate.LowConfidenceThreshold > c.Gate.AutoConfirmThreshold {
		return errors.New("gate.low_confidence_threshold must not exceed gate.auto_confirm_threshold")
	}
	return nil
}

func (c *Config) validateExcerpt() error {
	if c.Excerpt.MaxLength <= 0 {
		return errors.New("excerpt.max_length must be positive")
	}
	return nil
}

func (c *Config) validateLinking() error {
	for i, entity := range c.Linking.Entities {
		if strings.TrimSpace(entity.Type) == "" || strings.TrimSpace(entity.ID) == "" {
			return fmt.Errorf("linking.entities[%d]: type and id must be set", i)
		}
		if strings.TrimSpace(entity.Name) == "" {
			return fmt.Errorf("linking.entities[%d]: name must be set", i)
		}
	}
	for i, rule := range c.Linking.Rules {
		if strings.TrimSpace(rule.Match) == "" {
			return fmt.Errorf("linking.rules[%d]: match must be set", i)
		}
		if strings.TrimSpace(rule.EntityType) == "" || strings.TrimSpace(rule.EntityID) == "" {
			return fmt.Errorf("linking.rules[%d]: entity_type and entity_id must be set", i)
		}
		if rule.Confidence < 0 || rule.Confidence > 1 {
			return fmt.Errorf("linking.rules[%d]: confidence must be between 0 and 1", i)
		}
	}
	return nil
}
