package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/translate"
)

// Action names of the message contract.
const (
	ActionGetConfig          = "getConfig"
	ActionTranslate          = "translate"
	ActionCheckBackendStatus = "checkBackendStatus"
	ActionCheckModelStatus   = "checkModelStatus"
	ActionUpdateConfig       = "updateConfig"
	ActionResetConfig        = "resetConfig"
	ActionSwitchBackend      = "switchBackend"
	ActionReloadConfig       = "reloadConfig"
)

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// ConfigResponse answers getConfig.
type ConfigResponse struct {
	Success         bool                  `json:"success"`
	Config          *config.Configuration `json:"config,omitempty"`
	LanguageCatalog []config.Language     `json:"languageCatalog,omitempty"`
	ActiveBackend   string                `json:"activeBackend,omitempty"`
	Backends        []string              `json:"backends,omitempty"`
	State           string                `json:"state,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// TranslateResponse answers translate.
type TranslateResponse struct {
	Success             bool   `json:"success"`
	Translation         string `json:"translation,omitempty"`
	UsedFallback        bool   `json:"usedFallback"`
	ModelOrProviderUsed string `json:"modelOrProviderUsed,omitempty"`
	DetectedSourceLang  string `json:"detectedSourceLang,omitempty"`
	Error               string `json:"error,omitempty"`
	// ErrorKind classifies failures for programmatic callers.
	ErrorKind string `json:"errorKind,omitempty"`
}

// StatusResponse answers checkBackendStatus and checkModelStatus.
type StatusResponse translate.Status

// AckResponse answers the mutating actions and unknown actions.
type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func translateSuccess(out translate.Output) TranslateResponse {
	return TranslateResponse{
		Success:             true,
		Translation:         out.Text,
		UsedFallback:        out.UsedFallback,
		ModelOrProviderUsed: out.ModelID,
		DetectedSourceLang:  out.DetectedSourceLanguage,
	}
}

func translateFailure(err error) TranslateResponse {
	resp := TranslateResponse{
		Error:     translate.UserMessage(err),
		ErrorKind: string(translate.KindOf(err)),
	}
	var te *translate.Error
	if errors.As(err, &te) {
		resp.DetectedSourceLang = te.DetectedSourceLanguage
	}
	return resp
}

func ackFailure(err error) AckResponse {
	return AckResponse{Error: translate.UserMessage(err)}
}

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Message is one request envelope: {"action": "...", ...payload}.
type Message struct {
	Action string
	raw    []byte
}

// NewMessage builds an envelope from an action and an optional payload
// object whose fields are merged next to "action".
func NewMessage(action string, payload any) (Message, error) {
	raw := []byte(`{}`)
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		if !gjson.ParseBytes(b).IsObject() {
			return Message{}, fmt.Errorf("payload for %s must be an object", action)
		}
		raw = b
	}
	raw, err := sjson.SetBytes(raw, "action", action)
	if err != nil {
		return Message{}, err
	}
	return Message{Action: action, raw: raw}, nil
}

// UnmarshalJSON keeps the whole envelope for per-action decoding.
func (m *Message) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) || !gjson.ParseBytes(b).IsObject() {
		return fmt.Errorf("message must be a JSON object")
	}
	m.raw = append([]byte(nil), b...)
	m.Action = gjson.GetBytes(b, "action").String()
	return nil
}

// MarshalJSON returns the envelope.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.raw == nil {
		return sjson.SetBytes([]byte(`{}`), "action", m.Action)
	}
	return m.raw, nil
}

func (m Message) get(path string) gjson.Result {
	return gjson.GetBytes(m.raw, path)
}

// Dispatch routes one envelope to its action and returns the response
// record. Unknown actions and malformed payloads produce failure records.
func (c *Coordinator) Dispatch(ctx context.Context, m Message) any {
	switch m.Action {
	case ActionGetConfig:
		return c.GetConfig(ctx)

	case ActionTranslate:
		var req translate.Request
		if err := json.Unmarshal(m.raw, &req); err != nil {
			return translateFailure(invalidPayload(m.Action, err))
		}
		return c.Translate(ctx, req)

	case ActionCheckBackendStatus:
		return c.CheckBackendStatus(ctx)

	case ActionCheckModelStatus:
		return c.CheckModelStatus(ctx, m.get("modelId").String())

	case ActionUpdateConfig:
		doc := m.get("config")
		if !doc.IsObject() {
			return ackFailure(invalidPayload(m.Action, fmt.Errorf("config must be an object")))
		}
		cfg, err := config.Parse([]byte(doc.Raw), config.Default())
		if err != nil {
			return ackFailure(invalidPayload(m.Action, err))
		}
		return c.UpdateConfig(ctx, cfg)

	case ActionResetConfig:
		return c.ResetConfig(ctx)

	case ActionSwitchBackend:
		return c.SwitchBackend(ctx, m.get("backend").String())

	case ActionReloadConfig:
		return c.ReloadConfig(ctx)

	default:
		return AckResponse{Error: i18n.Tf("Unknown action: %s", m.Action)}
	}
}

func invalidPayload(action string, err error) error {
	return translate.NewError(translate.KindInvalidRequest,
		i18n.Tf("Invalid payload for %s", action), err)
}
