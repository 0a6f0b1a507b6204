package commands

import "github.com/you/eternalmod/internal/telegram"

type inlineRow = []telegram.InlineKeyboardButton

func inline(rows ...inlineRow) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func cb(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func link(text, url string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, URL: url}
}

// MainKeyboard is the reply keyboard shown under private chat answers.
func MainKeyboard() telegram.ReplyKeyboardMarkup {
	btn := func(text string) telegram.KeyboardButton { return telegram.KeyboardButton{Text: text} }
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{btn(ButtonRofl), btn(ButtonMock)},
			{btn(ButtonDarkRofl), btn(ButtonCoin)},
			{btn(ButtonInstruction), btn(ButtonCommands)},
		},
		ResizeKeyboard:        true,
		InputFieldPlaceholder: "Выбери рофл или напиши своё сообщение...",
	}
}

// OpenPrankMenuData opens the prank menu; business owners skip the gate.
const OpenPrankMenuData = "open_prank_menu"

// CommandsButton is the welcome button for a freshly connected business account.
func CommandsButton() telegram.InlineKeyboardMarkup {
	return inline(inlineRow{cb("❓ Команды и функционал", OpenPrankMenuData)})
}

func roflKeyboard() telegram.InlineKeyboardMarkup {
	return inline(inlineRow{cb("🎭 Ещё шутка", "more_rofl"), cb("🖤 Черные шутки", "dark_rofl")})
}

func darkRoflKeyboard() telegram.InlineKeyboardMarkup {
	return inline(inlineRow{cb("🖤 Ещё черную шутку", "more_dark_rofl"), cb("🎭 Обычные шутки", "more_rofl")})
}

func prankKeyboard() telegram.InlineKeyboardMarkup {
	return inline(
		inlineRow{cb(".type", "prank_type"), cb(".switch", "prank_switch")},
		inlineRow{cb(".kawaii", "prank_kawaii"), cb(".love", "prank_love")},
		inlineRow{cb(".iq", "prank_iq"), cb(".info", "prank_info")},
		inlineRow{cb(".zaebu", "prank_zaebu")},
	)
}

func (h *Handler) dashboardRow() []inlineRow {
	if h.opts.WebAppURL == "" {
		return nil
	}
	return []inlineRow{{{Text: "📊 Дашборд", WebApp: &telegram.WebAppInfo{URL: h.opts.WebAppURL}}}}
}

func (h *Handler) startKeyboard() telegram.InlineKeyboardMarkup {
	rows := []inlineRow{
		{cb("🎭 Рофл", "quick_rofl"), cb("🪙 Монетка", "quick_coin")},
		{cb("📖 Инструкция", "quick_instruction"), cb("❓ Помощь", "quick_help")},
	}
	return inline(append(rows, h.dashboardRow()...)...)
}

func (h *Handler) helpKeyboard() telegram.InlineKeyboardMarkup {
	rows := []inlineRow{
		{cb("📖 Инструкция", "quick_instruction"), link("📢 Канал", h.opts.ChannelURL)},
		{cb("🎭 Рофл", "quick_rofl"), cb("🪙 Монетка", "quick_coin")},
	}
	return inline(append(rows, h.dashboardRow()...)...)
}

func (h *Handler) aboutKeyboard() telegram.InlineKeyboardMarkup {
	return inline(
		inlineRow{cb("📖 Инструкция", "quick_instruction"), cb("❓ Помощь", "quick_help")},
		inlineRow{link("📢 Канал", h.opts.ChannelURL)},
	)
}

func commandsKeyboard() telegram.InlineKeyboardMarkup {
	return inline(
		inlineRow{cb("🎭 /rofl", "cmd_desc_rofl"), cb("🧽 /mock", "cmd_desc_mock")},
		inlineRow{cb("🪙 /coin", "cmd_desc_coin"), cb("📖 /instruction", "cmd_desc_instruction")},
		inlineRow{cb("❓ /help", "cmd_desc_help"), cb("🚀 /start", "cmd_desc_start")},
		inlineRow{cb("🎛 Пранк-меню (.команды)", OpenPrankMenuData)},
	)
}

func instructionKeyboard() telegram.InlineKeyboardMarkup {
	return inline(
		inlineRow{link("📱 Открыть настройки Telegram Business", "tg://settings/business")},
		inlineRow{cb("🔄 Обновить инструкцию", "refresh_instruction"), cb("❓ Помощь", "help_instruction")},
	)
}

// BotCommands is the menu registered with setMyCommands.
func BotCommands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "start", Description: "Поздороваться и узнать, что я умею"},
		{Command: "rofl", Description: "Случайный рофл/шутейка"},
		{Command: "mock", Description: "Сделать спонжбоб-насмешку из текста"},
		{Command: "coin", Description: "Подбросить монетку"},
		{Command: "help", Description: "Напомню, что я умею"},
		{Command: "instruction", Description: "Как подключить бота как бизнес-бота"},
		{Command: "commands", Description: "Описание всех команд"},
	}
}
