package types

// Role identifies who authored an utterance.
type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// RoleOf returns the role for a speaker_is_customer flag.
func RoleOf(isCustomer bool) Role {
	if isCustomer {
		return RoleCustomer
	}
	return RoleAgent
}

// Utterance is one turn of a ticket transcript. Index is its zero-based
// position in the source file and is never taken from the JSON.
type Utterance struct {
	Index             int    `json:"-"`
	Message           string `json:"message"`
	SpeakerIsCustomer bool   `json:"speaker_is_customer"`
}

func (u Utterance) Role() Role { return RoleOf(u.SpeakerIsCustomer) }

// Stage is the processing step a clip file belongs to.
type Stage string

const (
	StageRaw    Stage = "raw"
	StageStereo Stage = "stereo"
	StageMapped Stage = "mapped"
)

// Clip is one utterance's audio at one stage.
type Clip struct {
	Index int    `json:"index"`
	Role  Role   `json:"role"`
	Stage Stage  `json:"stage"`
	Path  string `json:"path"`
}

// Agent is an evaluation-platform user allowed to own contacts.
type Agent struct {
	ID    string `json:"agent_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContactRecord is one row of the outcome ledger.
type ContactRecord struct {
	ID          int64   `json:"id,omitempty"`
	Reference   string  `json:"reference"`
	Filename    string  `json:"filename"`
	Channel     string  `json:"channel"`
	AgentEmail  string  `json:"agent_email"`
	ContactDate string  `json:"contact_date"`
	Outcome     *string `json:"outcome"`
}
