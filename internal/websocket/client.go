package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/config"
	"github.com/robogatedev/tournament-server/internal/field"
	"github.com/robogatedev/tournament-server/internal/judging"
	"github.com/robogatedev/tournament-server/internal/middleware"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// Request is the client→server envelope. ID correlates the single
// acknowledgement the client receives for each request it issues.
type Request struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params"`
}

// Ack is the server's answer to one Request. Error carries an apperr kind
// string when Ok is false; Retryable marks the store-unavailable class the
// client may retry.
type Ack struct {
	Type      string `json:"type"` // always "ack", distinguishing acks from notifications
	ID        string `json:"id"`
	Ok        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Client request names.
const (
	RequestUpdateScoresheet    = "updateScoresheet"
	RequestApproveScoresheet   = "approveScoresheet"
	RequestReopenScoresheet    = "reopenScoresheet"
	RequestLoadMatch           = "loadMatch"
	RequestStartMatch          = "startMatch"
	RequestCompleteMatch       = "completeMatch"
	RequestBeginDeliberation   = "beginDeliberation"
	RequestLockDeliberation    = "lockDeliberation"
	RequestDisqualifyTeam      = "disqualifyTeam"
	RequestUpdateDivisionState = "updateDivisionState"
)

// Gateway binds the hub to the engines and authenticates connections. One
// Gateway serves every event; rooms are keyed per event inside the hub.
type Gateway struct {
	cfg     *config.Config
	db      *gorm.DB
	hub     *Hub
	field   *field.Service
	judging *judging.Service
}

// NewGateway wires the realtime entry point.
func NewGateway(cfg *config.Config, db *gorm.DB, hub *Hub, f *field.Service, j *judging.Service) *Gateway {
	return &Gateway{cfg: cfg, db: db, hub: hub, field: f, judging: j}
}

// Upgrade gates the HTTP→websocket upgrade. The connecting identity is
// authenticated here, before the socket opens — a client with a bad token
// never joins a room. The token rides a query parameter because browser
// websocket clients cannot set headers.
func (g *Gateway) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		claims, err := middleware.ParseToken(g.cfg, c.Query("token"))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		user, err := middleware.LookupUser(g.db, claims.Subject)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		eventID, err := uuid.Parse(c.Params("eventId"))
		if err != nil || user.EventID != eventID {
			return fiber.ErrUnauthorized
		}

		c.Locals("user", user)
		c.Locals("eventID", eventID.String())
		return c.Next()
	}
}

// Serve returns the websocket handler: it joins the authenticated client to
// its event room, runs the writer, and processes requests until disconnect.
// On disconnect the client leaves its room and no authorization state
// survives; a reconnecting client re-authenticates and re-pulls current
// state instead of trusting buffered broadcasts.
func (g *Gateway) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		user, _ := conn.Locals("user").(*models.User)
		eventID, _ := conn.Locals("eventID").(string)
		if user == nil || eventID == "" {
			_ = conn.Close()
			return
		}

		client := &Client{EventID: eventID, Send: make(chan []byte, 64)}
		g.hub.Register(client)

		// Writer: drains the hub's broadcasts (and this connection's acks)
		// onto the socket. Stops when the hub closes Send on unregister.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for data := range client.Send {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}()

		identity := user.Identity()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var req Request
			if err := json.Unmarshal(raw, &req); err != nil {
				g.ack(client, Ack{Type: "ack", Ok: false, Error: apperr.Kind(apperr.ErrValidation)})
				continue
			}

			handlerErr := g.dispatch(context.Background(), identity, req)
			ack := Ack{Type: "ack", ID: req.ID, Ok: handlerErr == nil}
			if handlerErr != nil {
				ack.Error = apperr.Kind(handlerErr)
				ack.Retryable = apperr.Retryable(handlerErr)
				log.Printf("websocket: %s request by %s failed: %v", req.Name, user.Role, handlerErr)
			}
			g.ack(client, ack)
		}

		// Unregister closes Send, which stops the writer; wait for it so the
		// connection teardown is complete before the handler returns.
		g.hub.Unregister(client)
		<-done
	})
}

// ack queues an acknowledgement on the client's own send channel so acks and
// broadcasts share one ordered writer.
func (g *Gateway) ack(client *Client, ack Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		// Client is not draining; the hub will drop it on the next broadcast.
	}
}

func (g *Gateway) dispatch(ctx context.Context, actor roles.Identity, req Request) error {
	switch req.Name {

	case RequestUpdateScoresheet:
		var p struct {
			MatchID   string             `json:"matchId"`
			TeamID    string             `json:"teamId"`
			Score     int                `json:"score"`
			Missions  models.MissionList `json:"missions"`
			Escalated bool               `json:"escalated"`
			Submit    bool               `json:"submit"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return apperr.Validationf("bad updateScoresheet params")
		}
		matchID, err := uuid.Parse(p.MatchID)
		if err != nil {
			return apperr.Validationf("bad match id")
		}
		teamID, err := uuid.Parse(p.TeamID)
		if err != nil {
			return apperr.Validationf("bad team id")
		}
		_, err = g.field.UpdateScoresheet(ctx, actor, field.ScoresheetWrite{
			MatchID:   matchID,
			TeamID:    teamID,
			Score:     p.Score,
			Missions:  p.Missions,
			Escalated: p.Escalated,
			Submit:    p.Submit,
		})
		return err

	case RequestApproveScoresheet, RequestReopenScoresheet:
		id, err := parseIDParam(req.Params, "scoresheetId")
		if err != nil {
			return err
		}
		if req.Name == RequestApproveScoresheet {
			_, err = g.field.ApproveScoresheet(ctx, actor, id)
		} else {
			_, err = g.field.ReopenScoresheet(ctx, actor, id)
		}
		return err

	case RequestLoadMatch, RequestStartMatch, RequestCompleteMatch:
		id, err := parseIDParam(req.Params, "matchId")
		if err != nil {
			return err
		}
		switch req.Name {
		case RequestLoadMatch:
			_, err = g.field.LoadMatch(ctx, actor, id)
		case RequestStartMatch:
			_, err = g.field.StartMatch(ctx, actor, id)
		default:
			_, err = g.field.CompleteMatch(ctx, actor, id)
		}
		return err

	case RequestBeginDeliberation, RequestLockDeliberation:
		id, err := parseIDParam(req.Params, "deliberationId")
		if err != nil {
			return err
		}
		if req.Name == RequestBeginDeliberation {
			_, err = g.judging.BeginDeliberation(ctx, actor, id)
		} else {
			_, err = g.judging.LockDeliberation(ctx, actor, id)
		}
		return err

	case RequestDisqualifyTeam:
		var p struct {
			DivisionID string `json:"divisionId"`
			TeamID     string `json:"teamId"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return apperr.Validationf("bad disqualifyTeam params")
		}
		divisionID, err := uuid.Parse(p.DivisionID)
		if err != nil {
			return apperr.Validationf("bad division id")
		}
		teamID, err := uuid.Parse(p.TeamID)
		if err != nil {
			return apperr.Validationf("bad team id")
		}
		return g.judging.DisqualifyTeam(ctx, actor, divisionID, teamID)

	case RequestUpdateDivisionState:
		var p struct {
			DivisionID            string                 `json:"divisionId"`
			LoadedMatchID         *string                `json:"loadedMatchId"`
			CurrentStage          *models.MatchStage     `json:"currentStage"`
			CurrentRound          *int                   `json:"currentRound"`
			AudienceDisplayScreen *models.AudienceScreen `json:"audienceDisplayScreen"`
			AllowTeamExports      *bool                  `json:"allowTeamExports"`
			Completed             *bool                  `json:"completed"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return apperr.Validationf("bad updateDivisionState params")
		}
		divisionID, err := uuid.Parse(p.DivisionID)
		if err != nil {
			return apperr.Validationf("bad division id")
		}
		patch := field.DivisionStatePatch{
			CurrentStage:          p.CurrentStage,
			CurrentRound:          p.CurrentRound,
			AudienceDisplayScreen: p.AudienceDisplayScreen,
			AllowTeamExports:      p.AllowTeamExports,
			Completed:             p.Completed,
		}
		if p.LoadedMatchID != nil {
			loaded, err := uuid.Parse(*p.LoadedMatchID)
			if err != nil {
				return apperr.Validationf("bad loaded match id")
			}
			patch.LoadedMatchID = &loaded
		}
		_, err = g.field.UpdateDivisionState(ctx, actor, divisionID, patch)
		return err

	default:
		return apperr.Validationf("unknown request %q", req.Name)
	}
}

func parseIDParam(params json.RawMessage, key string) (uuid.UUID, error) {
	var m map[string]string
	if err := json.Unmarshal(params, &m); err != nil {
		return uuid.Nil, apperr.Validationf("bad params")
	}
	id, err := uuid.Parse(m[key])
	if err != nil {
		return uuid.Nil, apperr.Validationf("bad %s", key)
	}
	return id, nil
}
