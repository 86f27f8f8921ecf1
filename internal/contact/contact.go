// Package contact builds the imported-contact documents sent to the
// evaluation platform.
package contact

import (
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"conversation-stream/internal/transcript"
	"conversation-stream/internal/types"
)

const (
	ChannelChat      = "Chat"
	ChannelTelephony = "Telephony"

	externalURL     = "https://www.evaluagent.com/platform/product-tours/"
	customerPhone   = "01753 877212"
	customerEmail   = "customer@unknown.com"
	contactLeadTime = 60 * time.Minute
	chatSpacing     = 3 * time.Minute
)

type Response struct {
	ResponseID        string `json:"response_id,omitempty"`
	Message           string `json:"message"`
	SpeakerIsCustomer bool   `json:"speaker_is_customer"`
	SpeakerEmail      string `json:"speaker_email,omitempty"`
	Channel           string `json:"channel,omitempty"`
	MessageCreatedAt  string `json:"message_created_at"`
}

type Metadata struct {
	Filename       string `json:"Filename"`
	Status         string `json:"Status,omitempty"`
	AgentResponses int    `json:"AgentResponses,omitempty"`
	Contact        string `json:"Contact"`
}

type Data struct {
	Reference                 string     `json:"reference"`
	AgentID                   string     `json:"agent_id"`
	AgentEmail                string     `json:"agent_email"`
	ContactDate               string     `json:"contact_date"`
	Channel                   string     `json:"channel"`
	AssignedAt                string     `json:"assigned_at"`
	SolvedAt                  string     `json:"solved_at"`
	ExternalURL               string     `json:"external_url"`
	ResponsesStoredExternally string     `json:"responses_stored_externally"`
	HandlingTime              float64    `json:"handling_time,omitempty"`
	CustomerTelephoneNumber   string     `json:"customer_telephone_number,omitempty"`
	AudioFilePath             string     `json:"audio_file_path,omitempty"`
	Responses                 []Response `json:"responses"`
	Metadata                  Metadata   `json:"metadata"`
}

// Contact is the body of POST /quality/imported-contacts.
type Contact struct {
	Data Data `json:"data"`
}

// PickAgent chooses a random agent.
func PickAgent(agents []types.Agent, rnd *rand.Rand) (types.Agent, error) {
	if len(agents) == 0 {
		return types.Agent{}, errors.New("no agents to assign")
	}
	return agents[rnd.IntN(len(agents))], nil
}

func base(agent types.Agent, channel string, now time.Time) (Data, time.Time) {
	contactDate := now.Add(-contactLeadTime)
	ts := contactDate.Format(time.RFC3339)
	return Data{
		Reference:                 uuid.New().String(),
		AgentID:                   agent.ID,
		AgentEmail:                agent.Email,
		ContactDate:               ts,
		Channel:                   channel,
		AssignedAt:                ts,
		SolvedAt:                  ts,
		ExternalURL:               externalURL,
		ResponsesStoredExternally: "true",
	}, contactDate
}

// Chat builds a chat contact from a ticket transcript. Messages are
// stamped three minutes apart starting an hour before now.
func Chat(agent types.Agent, transcriptPath string, utts []types.Utterance, now time.Time) Contact {
	d, start := base(agent, ChannelChat, now)
	agentCount := 0
	d.Responses = make([]Response, len(utts))
	for i, u := range utts {
		r := Response{
			Message:           u.Message,
			SpeakerIsCustomer: u.SpeakerIsCustomer,
			MessageCreatedAt:  start.Add(time.Duration(i) * chatSpacing).Format(time.RFC3339),
		}
		if !u.SpeakerIsCustomer {
			r.SpeakerEmail = agent.Email
			agentCount++
		}
		d.Responses[i] = r
	}
	d.Metadata = Metadata{
		Filename:       transcript.BaseName(transcriptPath),
		AgentResponses: agentCount,
		Contact:        "Ticket",
	}
	return Contact{Data: d}
}

// Call builds a telephony contact for a rendered recording. Responses
// follow the transcript's own speaker flags and are spread evenly across
// the handling time.
func Call(agent types.Agent, transcriptPath string, utts []types.Utterance, audioPath string, handlingSeconds float64, now time.Time) Contact {
	d, start := base(agent, ChannelTelephony, now)
	d.HandlingTime = math.Round(handlingSeconds*1000) / 1000
	d.CustomerTelephoneNumber = customerPhone
	d.AudioFilePath = audioPath

	step := time.Duration(0)
	if len(utts) > 0 {
		step = time.Duration(handlingSeconds / float64(len(utts)) * float64(time.Second))
	}
	d.Responses = make([]Response, len(utts))
	for i, u := range utts {
		email := agent.Email
		if u.SpeakerIsCustomer {
			email = customerEmail
		}
		d.Responses[i] = Response{
			ResponseID:        strconv.Itoa(i + 1),
			Message:           u.Message,
			SpeakerIsCustomer: u.SpeakerIsCustomer,
			SpeakerEmail:      email,
			Channel:           ChannelTelephony,
			MessageCreatedAt:  start.Add(time.Duration(i) * step).Format(time.RFC3339),
		}
	}
	d.Metadata = Metadata{Filename: transcript.BaseName(transcriptPath), Contact: "Call"}
	return Contact{Data: d}
}

// Record is the ledger row for a sent contact; the outcome starts empty.
func (c Contact) Record() types.ContactRecord {
	return types.ContactRecord{
		Reference:   c.Data.Reference,
		Filename:    c.Data.Metadata.Filename,
		Channel:     c.Data.Channel,
		AgentEmail:  c.Data.AgentEmail,
		ContactDate: c.Data.ContactDate,
	}
}
