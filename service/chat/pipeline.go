package chat

import (
	"context"
	"sort"
	"strings"

	"ChitChat/logger"
	"ChitChat/tools/errs"
)

type PipelineConf struct {
	BotMention   string // substring that triggers the bot in any room
	HistoryLimit int    // bounded history window fed to the responder
}

func (c *PipelineConf) norm() {
	if c.BotMention == "" {
		c.BotMention = "@gemini"
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
}

// Pipeline orchestrates one "user sends message" turn: participant check,
// persist, fan-out, and the optional bot reply. Steps are strictly
// sequential with no rollback; persistence is authoritative for ordering.
type Pipeline struct {
	store Store
	bc    *Broadcaster
	bot   BotResponder
	conf  PipelineConf
}

func NewPipeline(store Store, bc *Broadcaster, bot BotResponder, conf PipelineConf) *Pipeline {
	conf.norm()
	return &Pipeline{store: store, bc: bc, bot: bot, conf: conf}
}

// HandleSend runs a full message turn and returns the persisted user
// message. Persistence failures are fatal to the request; everything after
// the user-message broadcast is best effort and never propagates an error.
func (p *Pipeline) HandleSend(ctx context.Context, chatID, senderID int64, content string) (*Message, error) {
	ok, err := p.store.IsParticipant(ctx, chatID, senderID)
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("participant lookup", "chat", chatID, "err", err)
	}
	if !ok {
		return nil, errs.ErrNotParticipant
	}

	room, err := p.store.GetRoom(ctx, chatID)
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("room lookup", "chat", chatID, "err", err)
	}

	msg, err := p.store.CreateMessage(ctx, chatID, senderID, content, false)
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("create message", "chat", chatID, "err", err)
	}

	// The sender's own other connections receive it too, for multi-device
	// consistency; the HTTP request is not assumed to share the socket.
	p.bc.Broadcast(chatID, msg, nil)

	if p.triggered(room, content) {
		p.botTurn(ctx, chatID, senderID, content)
	}
	return msg, nil
}

// triggered: bot-type room, or a case-insensitive substring match on the
// mention token. Deliberately not a tokenizer.
func (p *Pipeline) triggered(room *Room, content string) bool {
	if room.Type == TypeBot {
		return true
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(p.conf.BotMention))
}

// botTurn generates, persists and broadcasts the bot reply. Every failure
// in here is logged and swallowed: the user turn already succeeded.
func (p *Pipeline) botTurn(ctx context.Context, chatID, senderID int64, prompt string) {
	botID, botOK, err := p.store.FindBotIdentity(ctx)
	if err != nil {
		logger.Errorf("[pipeline] bot identity lookup chat=%d err=%v", chatID, err)
		botOK = false
	}

	history, err := p.history(ctx, chatID, botID)
	if err != nil {
		logger.Errorf("[pipeline] history fetch chat=%d err=%v", chatID, err)
		return
	}

	reply := p.bot.Generate(ctx, prompt, history)
	if reply == "" {
		logger.Warnf("[pipeline] bot produced no reply chat=%d", chatID)
		return
	}

	botSender := botID
	if !botOK {
		// Degraded attribution: deliver the reply anyway, credited to the
		// human sender. Logged so operators notice the missing bot user.
		botSender = senderID
		logger.Warnf("[pipeline] bot identity unresolved, attributing reply to sender=%d chat=%d", senderID, chatID)
	}

	botMsg, err := p.store.CreateMessage(ctx, chatID, botSender, reply, true)
	if err != nil {
		logger.Errorf("[pipeline] persist bot message chat=%d err=%v", chatID, err)
		return
	}
	p.bc.Broadcast(chatID, botMsg, nil)
}

// history maps the recent persisted window to role/text pairs in
// chronological ascending order.
func (p *Pipeline) history(ctx context.Context, chatID, botID int64) ([]HistoryEntry, error) {
	msgs, err := p.store.RecentMessages(ctx, chatID, p.conf.HistoryLimit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	out := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.IsBotMessage || (botID != 0 && m.SenderID == botID) {
			role = RoleBot
		}
		out = append(out, HistoryEntry{Role: role, Text: m.Content})
	}
	return out, nil
}
