package store

import "time"

// IngestStatus reports how the gateway disposed of an accepted event.
type IngestStatus string

const (
	IngestCreated   IngestStatus = "created"
	IngestUnchanged IngestStatus = "unchanged"
	IngestUpdated   IngestStatus = "updated"
)

// ProfileStatus is the lifecycle state of an identity profile. Terminal
// states never transition back to active; operations spawn new profiles
// instead.
type ProfileStatus string

const (
	ProfileActive   ProfileStatus = "active"
	ProfileMerged   ProfileStatus = "merged"
	ProfileSplit    ProfileStatus = "split"
	ProfileInactive ProfileStatus = "inactive"
)

// ProfileKind distinguishes person and organization profiles.
type ProfileKind string

const (
	ProfilePerson       ProfileKind = "person"
	ProfileOrganization ProfileKind = "organization"
)

// ClaimStatus is the lifecycle state of an identity claim.
type ClaimStatus string

const (
	ClaimActive  ClaimStatus = "active"
	ClaimRetired ClaimStatus = "retired"
)

// OperationType classifies identity-profile mutations in the audit trail.
type OperationType string

const (
	OpCreate     OperationType = "create"
	OpMerge      OperationType = "merge"
	OpSplit      OperationType = "split"
	OpDeactivate OperationType = "deactivate"
)

// LinkStatus is the review state of an entity link. Confirmed and rejected
// are terminal.
type LinkStatus string

const (
	LinkProposed  LinkStatus = "proposed"
	LinkConfirmed LinkStatus = "confirmed"
	LinkRejected  LinkStatus = "rejected"
)

// MatchMethod names the strategy that produced an entity link.
type MatchMethod string

const (
	MethodHeaders       MatchMethod = "headers"
	MethodParticipants  MatchMethod = "participants"
	MethodNaming        MatchMethod = "naming"
	MethodRules         MatchMethod = "rules"
	MethodUserConfirmed MatchMethod = "user_confirmed"
)

// FixKind classifies manual-review queue items.
type FixKind string

const (
	FixUnresolvedIdentity FixKind = "unresolved_identity"
	FixAmbiguousLink      FixKind = "ambiguous_link"
	FixMissingEntity      FixKind = "missing_entity"
)

// FixStatus is the review state of a fix-queue item.
type FixStatus string

const (
	FixOpen     FixStatus = "open"
	FixResolved FixStatus = "resolved"
)

// Artifact is one immutable evidence event from an external source,
// deduplicated by (source, source_id).
type Artifact struct {
	ID             int64
	Source         string
	SourceID       string
	Kind           string
	OccurredAt     time.Time
	ActorProfileID string
	ContentHash    string
	Visibility     []string
	NeedsRelink    bool
	LinkedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Blob is content-addressed immutable payload storage keyed by content hash.
type Blob struct {
	ContentHash    string
	Payload        []byte
	SizeBytes      int64
	RetentionClass string
	CreatedAt      time.Time
}

// Excerpt is an anchored span into an artifact's payload plus cached text.
type Excerpt struct {
	ID          int64
	ArtifactID  int64
	AnchorType  string
	AnchorStart int
	AnchorEnd   int
	Text        string
	TextHash    string
	Redacted    bool
	CreatedAt   time.Time
}

// Profile is a canonical person or organization identity.
type Profile struct {
	ID             string
	Kind           ProfileKind
	DisplayName    string
	CanonicalValue string
	Domain         string
	Status         ProfileStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Claim binds one normalized external identifier to exactly one profile.
type Claim struct {
	ID              int64
	ProfileID       string
	Type            string
	RawValue        string
	NormalizedValue string
	Confidence      float64
	Source          string
	Status          ClaimStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Operation is the audit record of one identity-profile mutation. It is
// written in the same transaction as the mutation it describes.
type Operation struct {
	ID                  string
	Type                OperationType
	FromProfileIDs      []string
	ToProfileID         string
	Reason              string
	EvidenceArtifactIDs []int64
	Actor               string
	CreatedAt           time.Time
}

// Link associates an artifact with one business entity at a confidence.
// Target entities are weak references by (type, id) only.
type Link struct {
	ID          int64
	ArtifactID  int64
	EntityType  string
	EntityID    string
	Method      MatchMethod
	Confidence  float64
	Reasons     []string
	Status      LinkStatus
	ConfirmedBy string
	ConfirmedAt *time.Time
	CreatedAt   time.Time
}

// FixItem flags an ambiguous or missing link/identity for manual resolution.
type FixItem struct {
	ID         int64
	Kind       FixKind
	ArtifactID int64
	ClaimType  string
	RawValue   string
	Detail     string
	Status     FixStatus
	Resolution string
	ResolvedBy string
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

// RetentionStandard is the default blob retention class; retention policy
// itself is external governance.
const RetentionStandard = "standard"
