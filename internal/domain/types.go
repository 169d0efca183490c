// Package domain holds the data model shared by every pipeline and
// operation-intelligence component (spec.md §3): stages, results,
// file operations, scores, and the decision/rollback vocabulary.
package domain

import "time"

// Stage is one of the four ordered pipeline phases. Total-ordered by
// pipeline position.
type Stage int

const (
	StageGenerator Stage = iota
	StageRefiner
	StageValidator
	StageCurator
)

func (s Stage) String() string {
	switch s {
	case StageGenerator:
		return "Generator"
	case StageRefiner:
		return "Refiner"
	case StageValidator:
		return "Validator"
	case StageCurator:
		return "Curator"
	default:
		return "Unknown"
	}
}

// Stages is the fixed, total-ordered stage sequence every successful
// ConsensusResult must contain (invariant 1).
var Stages = []Stage{StageGenerator, StageRefiner, StageValidator, StageCurator}

// TokenUsage mirrors a model call's token accounting.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// StageAnalytics holds the per-stage metrics computed on stream close.
type StageAnalytics struct {
	DurationMS   int64
	CostUSD      float64
	QualityScore float64 // in [0,1]
	ErrorCount   int
	Provider     string
	Features     map[string]interface{}
}

// StageResult is immutable once emitted by a stage runner.
type StageResult struct {
	Stage     Stage
	ModelID   string
	Answer    string
	Usage     TokenUsage
	Analytics StageAnalytics
}

// ContextStrategy selects how context is injected before Generator.
type ContextStrategy string

const (
	ContextNone           ContextStrategy = "None"
	ContextRepositoryOnly ContextStrategy = "RepositoryOnly"
	ContextTemporalOnly   ContextStrategy = "TemporalOnly"
	ContextBoth           ContextStrategy = "Both"
	ContextSemantic       ContextStrategy = "Semantic"
)

// StageModelSelection fixes or dynamically resolves a stage's model.
type StageModelSelection struct {
	Fixed   string // non-empty if static
	Dynamic bool
}

// RetryPolicy configures stage-runner retry behavior (spec.md §4.4).
type RetryPolicy struct {
	MaxAttempts int
}

// ConsensusProfile is a named configuration bundle: per-stage
// temperatures/models and a context injection strategy.
type ConsensusProfile struct {
	Name            string
	Temperatures    map[Stage]float32
	Models          map[Stage]StageModelSelection
	ContextStrategy ContextStrategy
	Retry           RetryPolicy
	AutoAcceptMode  AutoAcceptMode
}

// ConsensusRequest is the transient input to a consensus run.
type ConsensusRequest struct {
	Query           string
	ExternalContext string
	Profile         ConsensusProfile
	Stream          bool
	Temperature     *float32
	MaxTokens       *int
}

// ConsensusMetadata rolls up totals across all four stages (invariant 2).
type ConsensusMetadata struct {
	DurationMS  int64
	TotalTokens int
	CostUSD     float64
	ModelsUsed  []string
}

// ConsensusResult is the outcome of one process() call.
type ConsensusResult struct {
	Success     bool
	Stages      []StageResult
	Metadata    ConsensusMetadata
	FinalAnswer string
	FailedStage Stage
	FailReason  string
}

// TemporalContext is built on demand, never persisted (spec.md §4.2).
type TemporalContext struct {
	CurrentDate           string
	CurrentDateTime       string
	Quarter               string
	FiscalPeriod          string
	SearchInstruction     string
	TemporalAwarenessText string
}

// StageContext is the retrieved context assembled for one stage's
// prompt (spec.md §4.3), already trimmed to a token budget.
type StageContext struct {
	Stage      Stage
	Precedents []IndexedKnowledge
	TokensUsed int
}

// OperationContextAnalysis is the result of analyze_operation_context
// (spec.md §4.3): relevant precedents for a proposed set of file
// operations plus an optional historical success-rate summary.
type OperationContextAnalysis struct {
	RelevantPrecedents  []IndexedKnowledge
	SuccessRateAnalysis *SuccessRateAnalysis
}

// SuccessRateAnalysis summarizes predict_operation_success (C5) for a
// batch of operations.
type SuccessRateAnalysis struct {
	SuccessProbability float64
	SampleSize         int
}

// IndexedKnowledge is a record stored in the vector store by the
// knowledge indexer (C5).
type IndexedKnowledge struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  KnowledgeMetadata
}

// KnowledgeMetadata is the structured metadata attached to indexed
// knowledge.
type KnowledgeMetadata struct {
	Role         string
	Language     string
	Timestamp    time.Time
	QualityScore float64
	FilePath     string
	Entity       string
}

// Conversation is the persisted unit backing process()'s history
// (spec.md §6.6): one conversation per conversation_id, with its full
// message transcript and arbitrary metadata stored as JSON.
type Conversation struct {
	ID           string
	Title        string
	Messages     []ConversationMessage
	Metadata     map[string]interface{}
	Summary      string
	ThemeCluster string
	UpdatedAt    time.Time
}

// ConversationMessage is one turn in a Conversation's transcript.
type ConversationMessage struct {
	Role    string
	Content string
	Stage   Stage
}

// FileOperationKind tags the variant of a FileOperation.
type FileOperationKind string

const (
	OpCreate FileOperationKind = "Create"
	OpUpdate FileOperationKind = "Update"
	OpDelete FileOperationKind = "Delete"
	OpRename FileOperationKind = "Rename"
	OpAppend FileOperationKind = "Append"
)

// FileOperation is a single proposed mutation of the working tree.
type FileOperation struct {
	Kind    FileOperationKind
	Path    string // Create/Update/Delete/Append
	Content string // Create/Update/Append
	From    string // Rename
	To      string // Rename
}

// OperationContext is the surrounding context a set of FileOperations
// was proposed in.
type OperationContext struct {
	RepositoryPath    string
	UserQuestion      string
	ConsensusResponse string
	Timestamp         time.Time
	SessionID         string
	GitCommit         string
}

// HelperName enumerates the five side-channel analyzers, in the fixed
// merge order spec.md §5 requires.
type HelperName string

const (
	HelperIndexer     HelperName = "Indexer"
	HelperRetriever   HelperName = "Retriever"
	HelperRecognizer  HelperName = "Recognizer"
	HelperAnalyzer    HelperName = "Analyzer"
	HelperSynthesizer HelperName = "Synthesizer"
)

// HelperOrder is the deterministic fold order for merging helper
// results into a UnifiedScore (spec.md §5).
var HelperOrder = []HelperName{HelperIndexer, HelperRetriever, HelperRecognizer, HelperAnalyzer, HelperSynthesizer}

// HelperScore is what each helper contributes.
type HelperScore struct {
	Confidence float64 // [0,100]
	Risk       float64 // [0,100]
	Metrics    map[string]interface{}
}

// UnifiedScore is the fused (confidence, risk) pair produced by C14.
type UnifiedScore struct {
	Confidence float64
	Risk       float64
}

// HelperErrorKind classifies why a helper call failed (spec.md §4.5).
type HelperErrorKind string

const (
	HelperErrTimeout     HelperErrorKind = "Timeout"
	HelperErrUnavailable HelperErrorKind = "Unavailable"
	HelperErrInternal    HelperErrorKind = "Internal"
)

// HelperError is the typed failure a helper call may return in place
// of a HelperScore.
type HelperError struct {
	Kind    HelperErrorKind
	Message string
}

func (e HelperError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// MergedHelperResult is the Parallel Helper Coordinator's (C10)
// output: one HelperScore per helper (neutral-prior substituted for
// any that failed) plus the recorded errors for failed helpers.
type MergedHelperResult struct {
	Scores map[HelperName]HelperScore
	Errors map[HelperName]HelperError
}

// AutoAcceptMode is the policy knob governing decision mapping.
type AutoAcceptMode string

const (
	ModeConservative AutoAcceptMode = "Conservative"
	ModeBalanced     AutoAcceptMode = "Balanced"
	ModeAggressive   AutoAcceptMode = "Aggressive"
	ModePlan         AutoAcceptMode = "Plan"
	ModeManual       AutoAcceptMode = "Manual"
)

// CustomRule is a boolean predicate over (ops, unified, context) that
// may only downgrade or block a decision, never upgrade it.
type CustomRule struct {
	Name      string
	Predicate func(ops []FileOperation, unified UnifiedScore, ctx OperationContext) bool
	Block     bool // true = Block, false = RequireConfirmation
	Reason    string
}

// UserPreferences configures per-user decision behavior.
type UserPreferences struct {
	RiskTolerance                     float64
	AutoBackup                        bool
	RequireConfirmationForDeletions   bool
	RequireConfirmationForMassUpdates bool
	TrustAISuggestions                float64
	PreferredMode                     AutoAcceptMode
	CustomRules                       []CustomRule
	// HelperWeights renormalizes to 1.0 across HelperOrder; nil means
	// the package defaults from spec.md §3 apply.
	HelperWeights map[HelperName]float64
}

// ExecutionDecisionKind tags the decision variant.
type ExecutionDecisionKind string

const (
	DecisionAutoExecute         ExecutionDecisionKind = "AutoExecute"
	DecisionRequireConfirmation ExecutionDecisionKind = "RequireConfirmation"
	DecisionBlock               ExecutionDecisionKind = "Block"
)

// ExecutionDecision is the Smart Decision Engine's output.
type ExecutionDecision struct {
	Kind       ExecutionDecisionKind
	Confidence float64
	Risk       float64
	Reasons    []string
}

// RollbackActionKind tags a RollbackOperation's action variant.
type RollbackActionKind string

const (
	ActionDeleteCreatedFile   RollbackActionKind = "DeleteCreatedFile"
	ActionRestoreFromBackup   RollbackActionKind = "RestoreFromBackup"
	ActionUndoRename          RollbackActionKind = "UndoRename"
	ActionRecreateDeletedFile RollbackActionKind = "RecreateDeletedFile"
	ActionRevertModification  RollbackActionKind = "RevertModification"
	ActionRestoreDirectory    RollbackActionKind = "RestoreDirectory"
	ActionRunScript           RollbackActionKind = "RunScript"
	ActionGitRevert           RollbackActionKind = "GitRevert"
	ActionNoOp                RollbackActionKind = "NoOp"
)

// RollbackAction carries the action-specific fields; only the fields
// relevant to Kind are populated.
type RollbackAction struct {
	Kind RollbackActionKind

	Path     string // DeleteCreatedFile, RecreateDeletedFile, RevertModification, RestoreDirectory
	Backup   string // RestoreFromBackup
	Target   string // RestoreFromBackup
	Current  string // UndoRename
	Original string // UndoRename

	Content         string  // RecreateDeletedFile, RevertModification (new content / original content respectively)
	OriginalContent string  // RevertModification
	Permissions     *uint32 // RecreateDeletedFile

	ScriptPath string   // RunScript
	ScriptArgs []string // RunScript

	Commit string   // GitRevert
	Paths  []string // GitRevert

	Reason string // NoOp
}

// RollbackOperation is one node of a rollback plan's DAG.
type RollbackOperation struct {
	OperationID   string
	Action        RollbackAction
	Description   string
	FilesAffected []string
	Dependencies  []string
}

// SafetyLevel governs rollback failure policy.
type SafetyLevel string

const (
	SafetyLow      SafetyLevel = "Low"
	SafetyMedium   SafetyLevel = "Medium"
	SafetyHigh     SafetyLevel = "High"
	SafetyCritical SafetyLevel = "Critical"
)

// RollbackPlan is consumed exactly once by the rollback executor.
type RollbackPlan struct {
	PlanID               string
	Operations           []RollbackOperation
	SafetyLevel          SafetyLevel
	VerificationRequired bool
}

// OperationResultStatus is the terminal state of one rollback action.
type OperationResultStatus string

const (
	OpResultCompleted OperationResultStatus = "Completed"
	OpResultFailed    OperationResultStatus = "Failed"
)

// OperationResult records the outcome of executing one RollbackOperation.
type OperationResult struct {
	OperationID string
	Status      OperationResultStatus
	Error       string
	DurationMS  int64
}

// RollbackResult is returned by the rollback executor's Execute call.
type RollbackResult struct {
	PlanID              string
	Success             bool
	OperationsCompleted int
	OperationsTotal     int
	OperationResults    []OperationResult
	Errors              []string
	DurationMS          int64
}
