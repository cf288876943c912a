package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/util"
)

type EventType string

const (
	EventLoginSuccess       EventType = "login_success"
	EventLoginFailure       EventType = "login_failure"
	EventLogout             EventType = "logout"
	EventMagicLinkIssue     EventType = "magic_link_issue"
	EventMagicLinkExchange  EventType = "magic_link_exchange"
	EventIdentityInvited    EventType = "identity_invited"
	EventIdentitySelfSignup EventType = "identity_self_signup"
	EventEmailConfirmed     EventType = "email_confirmed"
	EventAccountProvision   EventType = "account_provision"
	EventAccountDeactivate  EventType = "account_deactivate"
	EventPasswordSetup      EventType = "password_setup"
	EventRateLimitExceed    EventType = "rate_limit_exceeded"
	EventAuthFailure        EventType = "auth_failure"
)

type Event struct {
	Type            EventType
	PortalAccountID string
	CompanyID       string
	Email           string
	IP              string
	UserAgent       string
	Details         map[string]interface{}
}

// Client identifies the caller of the request being served.
type Client struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// ClientFromContext returns the zero Client outside a request.
func ClientFromContext(ctx context.Context) Client {
	client, _ := ctx.Value(clientKey{}).(Client)
	return client
}

func Log(ctx context.Context, event Event) {
	client := ClientFromContext(ctx)
	if event.IP == "" {
		event.IP = client.IP
	}
	if event.UserAgent == "" {
		event.UserAgent = client.UserAgent
	}

	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	child := logger.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.PortalAccountID != "" {
		child = child.With().Str("portal_account_id", event.PortalAccountID).Logger()
	}
	if event.CompanyID != "" {
		child = child.With().Str("company_id", event.CompanyID).Logger()
	}
	if event.Email != "" {
		child = child.With().Str("email", util.MaskEmail(event.Email)).Logger()
	}
	if event.IP != "" {
		child = child.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		child = child.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := child.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Time:
		return e.Time(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
