package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/views"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

var (
	errUsage     = errors.New("usage")
	errBadID     = errors.New("that is not a valid id")
	errBadFormat = errors.New("unknown format, use single, double or rr")
)

type request struct {
	chatID int64
	userID int64
	args   string
}

type command struct {
	admin   bool
	usage   string
	handler func(ctx context.Context, req request) error
}

func (b *Bot) routes() map[string]command {
	return map[string]command{
		"start":       {handler: b.help},
		"help":        {handler: b.help},
		"tournaments": {handler: b.listTournaments},
		"tournament":  {usage: "/tournament <id>", handler: b.showTournament},
		"teams":       {usage: "/teams <id>", handler: b.listTeams},
		"addteam":     {usage: "/addteam <id> <team name>", handler: b.addTeam},

		"newtournament": {admin: true, usage: "/newtournament <single|double|rr> <name>", handler: b.newTournament},
		"approve":       {admin: true, usage: "/approve <id> <team name>", handler: b.setTeamStatus(bracket.TeamApproved)},
		"reject":        {admin: true, usage: "/reject <id> <team name>", handler: b.setTeamStatus(bracket.TeamRejected)},
		"createbracket": {admin: true, usage: "/createbracket <id>", handler: b.createBracket},
		"syncteams":     {admin: true, usage: "/syncteams <id>", handler: b.syncTeams},
		"swap":          {admin: true, usage: "/swap <id>", handler: b.startSwap},
		"cancel":        {admin: true, usage: "/cancel <id>", handler: b.cancelSwap},
		"startbracket":  {admin: true, usage: "/startbracket <id>", handler: b.startBracket},
		"refresh":       {admin: true, usage: "/refresh <id>", handler: b.refresh},
		"score":         {admin: true, usage: "/score <match id> <winner team> <score>", handler: b.score},
		"finalize":      {admin: true, usage: "/finalize <id>", handler: b.finalize},
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	req := request{
		chatID: msg.Chat.ID,
		userID: msg.From.ID,
		args:   strings.TrimSpace(msg.CommandArguments()),
	}
	name := msg.Command()

	cmd, ok := b.commands[name]
	if !ok {
		b.reply(ctx, req.chatID, views.Notice("Unknown command. Try /help."), nil)
		return
	}
	if cmd.admin && !b.config.IsAdmin(req.userID) {
		b.logger.Warn("admin command refused", "command", name, "user_id", req.userID)
		b.reply(ctx, req.chatID, views.Notice("Only organizers can do that."), nil)
		return
	}

	err := cmd.handler(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		b.reply(ctx, req.chatID, views.Notice("Usage: "+cmd.usage), nil)
	case errors.Is(err, errBadID), errors.Is(err, errBadFormat):
		b.reply(ctx, req.chatID, views.Notice(capitalize(err.Error())+"."), nil)
	default:
		b.fail(ctx, req.chatID, name, err)
	}
}

func (b *Bot) help(ctx context.Context, req request) error {
	b.reply(ctx, req.chatID, views.Help(b.config.IsAdmin(req.userID)), nil)
	return nil
}

func (b *Bot) listTournaments(ctx context.Context, req request) error {
	tournaments, err := b.tournaments.ListTournaments(ctx)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.TournamentList(tournaments), nil)
	return nil
}

// showTournament reloads the tournament, which abandons any half-done swap.
func (b *Bot) showTournament(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	data, err := b.tournaments.GetTournamentData(ctx, id)
	if err != nil {
		return err
	}
	// Deliberately non-fatal: Reset logs the failure and the card is still worth showing.
	_ = b.swaps.Reset(ctx, req.userID, id)
	b.reply(ctx, req.chatID, views.TournamentCard(data), nil)
	return nil
}

func (b *Bot) listTeams(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	data, err := b.tournaments.GetTournamentData(ctx, id)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.TeamList(data.Teams), nil)
	return nil
}

func (b *Bot) addTeam(ctx context.Context, req request) error {
	id, name, err := idAndRest(req.args, true)
	if err != nil {
		return err
	}
	team, err := b.tournaments.RegisterTeam(ctx, id, name)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.Notice("Team "+team.Name+" registered and waiting for approval."), nil)
	return nil
}

func (b *Bot) newTournament(ctx context.Context, req request) error {
	formatArg, name, ok := strings.Cut(req.args, " ")
	if !ok || strings.TrimSpace(name) == "" {
		return errUsage
	}
	format, ok := bracket.ParseFormat(strings.ToLower(formatArg))
	if !ok {
		return errBadFormat
	}
	t, err := b.tournaments.CreateTournament(ctx, name, format)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.Notice("Tournament "+t.Name+" created. Id: "+t.ID.String()), nil)
	return nil
}

func (b *Bot) setTeamStatus(status bracket.TeamStatus) func(context.Context, request) error {
	return func(ctx context.Context, req request) error {
		id, name, err := idAndRest(req.args, true)
		if err != nil {
			return err
		}
		var team *bracket.Team
		if status == bracket.TeamApproved {
			team, err = b.tournaments.ApproveTeam(ctx, id, name)
		} else {
			team, err = b.tournaments.RejectTeam(ctx, id, name)
		}
		if err != nil {
			return err
		}
		b.reply(ctx, req.chatID, views.Notice("Team "+team.Name+" is now "+string(team.Status)+"."), nil)
		return nil
	}
}

func (b *Bot) createBracket(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	res, err := b.sync.CreateBracket(ctx, id)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.BracketCreated(res), nil)
	return nil
}

func (b *Bot) syncTeams(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	res, err := b.sync.SyncParticipants(ctx, id)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.ParticipantsSynced(res), nil)
	return nil
}

func (b *Bot) startBracket(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	res, err := b.sync.StartBracket(ctx, id)
	if res != nil {
		b.reply(ctx, req.chatID, views.StartOutcome(res), nil)
	}
	return err
}

func (b *Bot) refresh(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	res, err := b.sync.RefreshStatus(ctx, id)
	if res != nil {
		b.reply(ctx, req.chatID, views.RefreshOutcome(res), nil)
	}
	return err
}

func (b *Bot) score(ctx context.Context, req request) error {
	matchID, rest, err := idAndRest(req.args, true)
	if err != nil {
		return err
	}
	idx := strings.LastIndex(rest, " ")
	if idx < 0 {
		return errUsage
	}
	teamName, score := strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+1:])
	if teamName == "" {
		return errUsage
	}

	team, err := b.tournaments.MatchTeam(ctx, matchID, teamName)
	if err != nil {
		return err
	}
	res, err := b.sync.ReportScore(ctx, matchID, team.ID, score)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.ScoreRecorded(res), nil)
	return nil
}

func (b *Bot) finalize(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	t, err := b.sync.Finalize(ctx, id)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.Notice(t.Name+" is finalized."), nil)
	return nil
}

// idAndRest splits "<uuid> rest of line". With needRest the rest must be non-empty.
func idAndRest(args string, needRest bool) (uuid.UUID, string, error) {
	first, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	if first == "" {
		return uuid.Nil, "", errUsage
	}
	id, err := uuid.Parse(first)
	if err != nil {
		return uuid.Nil, "", errBadID
	}
	rest = strings.TrimSpace(rest)
	if needRest && rest == "" {
		return uuid.Nil, "", errUsage
	}
	return id, rest, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
