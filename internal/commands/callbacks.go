package commands

import (
	"context"
	"html"
	"log"
	"strings"

	"github.com/you/eternalmod/internal/gate"
	"github.com/you/eternalmod/internal/telegram"
)

const cmdDescPrefix = "cmd_desc_"

var callbackData = map[string]bool{
	"more_rofl":                true,
	"dark_rofl":                true,
	"more_dark_rofl":           true,
	"refresh_instruction":      true,
	"help_instruction":         true,
	"quick_rofl":               true,
	"quick_coin":               true,
	"quick_instruction":        true,
	"quick_help":               true,
	OpenPrankMenuData:          true,
	"prank_type":               true,
	"prank_switch":             true,
	"prank_kawaii":             true,
	"prank_love":               true,
	"prank_iq":                 true,
	"prank_info":               true,
	"prank_zaebu":              true,
	gate.CheckSubscriptionData: true,
}

// Handles reports whether data is one of the command layer's buttons.
func Handles(data string) bool {
	if callbackData[data] {
		return true
	}
	_, ok := commandDescriptions[strings.TrimPrefix(data, cmdDescPrefix)]
	return ok && strings.HasPrefix(data, cmdDescPrefix)
}

// Callback answers an inline button press. It reports false for data it does
// not own, leaving the query unanswered.
func (h *Handler) Callback(ctx context.Context, cq *telegram.CallbackQuery) bool {
	if !Handles(cq.Data) {
		return false
	}
	if cq.Message == nil {
		h.answer(ctx, cq, "")
		return true
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID
	plain := target{chatID: chatID, bcID: cq.Message.BusinessConnectionID}
	to := plain
	if plain.bcID == "" {
		to = privateTarget(chatID)
	}

	switch {
	case cq.Data == gate.CheckSubscriptionData:
		if h.gate.IsSubscribed(ctx, userID) {
			h.reply(ctx, to, subFound)
		} else {
			h.send(ctx, to, subNotFound, h.gate.Keyboard())
		}
		h.answer(ctx, cq, "")
		return true
	case cq.Data == OpenPrankMenuData && h.registry.HasOwner(userID):
		h.prankMenu(ctx, plain)
		h.answer(ctx, cq, "")
		return true
	}

	if !h.gate.IsSubscribed(ctx, userID) {
		h.gate.Prompt(ctx, h.sender, chatID, plain.bcID)
		h.answer(ctx, cq, "")
		return true
	}

	ack := ""
	switch cq.Data {
	case "more_rofl":
		h.editOrSend(ctx, plain, cq.Message, html.EscapeString(h.pick(roflLines)), roflKeyboard())
	case "dark_rofl", "more_dark_rofl":
		h.editOrSend(ctx, plain, cq.Message, html.EscapeString(h.pick(darkRoflLines)), darkRoflKeyboard())
	case "refresh_instruction":
		h.instruction(ctx, chatID)
		ack = "Инструкция обновлена ✨"
	case "help_instruction":
		h.send(ctx, plain, instructionHelpText, nil)
	case "quick_rofl":
		h.rofl(ctx, chatID)
		ack = "Рофл отправлен! 🎭"
	case "quick_coin":
		h.send(ctx, plain, h.coin()+" 🪙", nil)
	case "quick_instruction":
		h.instruction(ctx, chatID)
	case "quick_help":
		h.help(ctx, chatID)
	case OpenPrankMenuData:
		h.prankMenu(ctx, plain)
	case "prank_type":
		h.send(ctx, plain, typeUsage, nil)
	case "prank_switch":
		h.send(ctx, plain, switchUsage, nil)
	case "prank_kawaii":
		h.reply(ctx, to, kawaiiState(h.kawaii.Toggle(userID)))
	case "prank_love":
		h.reply(ctx, to, h.pick(shortLoveLines))
	case "prank_iq":
		h.reply(ctx, to, h.iq())
	case "prank_info":
		h.reply(ctx, to, infoText(&cq.From))
	case "prank_zaebu":
		h.reply(ctx, to, "Заебушка ✨")
	default:
		desc := commandDescriptions[strings.TrimPrefix(cq.Data, cmdDescPrefix)]
		h.send(ctx, plain, desc, nil)
	}
	h.answer(ctx, cq, ack)
	return true
}

func (h *Handler) editOrSend(ctx context.Context, to target, msg *telegram.Message, text string, markup telegram.InlineKeyboardMarkup) {
	if err := h.sender.EditMessageText(ctx, msg.Chat.ID, msg.MessageID, text, markup); err != nil {
		log.Printf("commands: edit failed, sending a new message: %v", err)
		h.send(ctx, to, text, markup)
	}
}

func (h *Handler) answer(ctx context.Context, cq *telegram.CallbackQuery, text string) {
	if err := h.sender.AnswerCallbackQuery(ctx, cq.ID, text, false); err != nil {
		log.Printf("commands: answer callback: %v", err)
	}
}
