package commands

var roflLines = []string{
	"Бот не тупит, он просто думает асинхронно.",
	"На свете два вида людей: те, кто ждёт ответ от бота… и я.",
	"Если бы у меня были руки, я бы хлопал тебе. Но нет.",
	"Люди шутят, когда нервничают. Я шучу, когда обновляют pip.",
	"Я не баг, я сюрпризный фичер.",
	"Главное не путать «/stop» с «/стоп»… хотя у меня всё равно нет /stop.",
	"Оптимист видит стакан наполовину полным. Пессимист наполовину пустым. Я вижу стакан и думаю: 'А где мой токен?'",
	"Жизнь как код: работает на тестовом окружении, падает на проде.",
	"Почему программисты предпочитают тёмную тему? Потому что свет притягивает баги.",
	"Что такое оптимизм для программиста? 'Это работает на моей машине'.",
	"Программист заходит в бар и заказывает -1 пива. Бармен: 'Такого не бывает'. Программист: 'Тогда null'.",
	"Почему программисты не любят природу? Там нет Ctrl+Z.",
	"Программист умер и попал в рай. Бог говорит: 'Твой код работает без багов'. Программист: 'Это точно рай?'",
	"Что такое бесконечный цикл для программиста? Его жизнь.",
	"Почему программисты не любят ходить на свидания? Там нет автодополнения.",
	"Что такое счастье для программиста? Когда код работает с первого раза.",
	"Что общего у программиста и детектива? Оба ищут баги.",
	"Почему программисты не любят ходить в кино? Там нельзя поставить breakpoint.",
	"Что такое ад для программиста? Когда код работает на всех машинах, кроме его.",
	"Программист читает мануал. Страница 1: 'Введение'. Программист: 'Слишком сложно, Stack Overflow'.",
}

var darkRoflLines = []string{
	"Колобок повесился.",
	"Газпром. Мечты сбываются.",
	"Жизнь прекрасна, пока не проснёшься.",
	"Всё будет хорошо. Просто не с тобой.",
	"Улыбайся! Завтра будет хуже.",
	"Надежда умирает последней. Но она всё равно умрёт.",
	"Оптимист видит свет в конце туннеля. Пессимист видит свет в конце туннеля и понимает, что это поезд.",
	"Жизнь даёт тебе лимоны. Но лимоны гнилые, и у тебя аллергия на цитрусовые.",
	"Улыбайся! Мир не такой плохой, каким кажется. Он хуже.",
	"Жизнь как шоколад: горькая, и её мало.",
	"Акробат умер на батуте, но ещё какое-то время продолжал радовать публику.",
	"Шутки про утопленников обычно несмешные, потому что лежат на поверхности.",
	"Фальшивого дрессировщика в цирке быстро раскусили.",
	"На распродаже человеческих органов началась драка. Я еле успел унести ноги.",
	"— Доктор, у вас есть что-нибудь от головы?\n— Вот, возьмите ухо.",
	"Умер как-то продавец-консультант. На его могилу до сих пор тянутся люди, просто посмотреть.",
	"Одна девочка так сильно боялась прыгать с парашютом, что прыгнула без него.",
	"Я воспитывался как единственный ребёнок в семье. Это очень расстраивало мою старшую сестру.",
}

var loveLines = []string{
	"💘 Любовь запущена… *пик* …готово!",
	"❤️ Сердечко доставлено адресату. Если адресата нет, ну… сам виноват 😄",
	"💞 Режим романтики активирован на 10 секунд (примерно).",
}

var shortLoveLines = []string{
	"💘 *пик* — любовь доставлена!",
	"❤️ Романтика активирована.",
	"💞 Сердечки полетели!",
}

var kawaiiSuffixes = []string{" nya~", " uwu", " ^_^", " :3"}

var coinSides = []string{"Орёл", "Решка"}

const (
	startText = "Йоу! Я EternalMod.\n\n" +
		"🎯 <b>Что я умею:</b>\n" +
		"• /rofl — случайная шуточка\n" +
		"• /mock [текст] — передразнить\n" +
		"• /coin — орёл или решка\n" +
		"• /help — подсказка\n" +
		"• /instruction — как подключить как бизнес-бота"

	helpText = "🤖 <b>EternalMod — Центр помощи</b>\n" +
		"━━━━━━━━━━━━━━━━━━\n\n" +
		"🎭 <b>Пранк-команды</b>\n" +
		"• <b>/rofl</b> — случайный рофл\n" +
		"• <b>/mock &lt;текст&gt;</b> — передразнить (SpongeBob)\n" +
		"• <b>/coin</b> — орёл или решка\n\n" +
		"🕵️ <b>Бизнес-функции (PRO)</b>\n" +
		"• Просмотр <b>удалённых сообщений</b>\n" +
		"• Просмотр <b>изменённых сообщений</b>\n" +
		"• Логи действий в чатах\n\n" +
		"⚠️ <b>Требования для PRO:</b>\n" +
		"• Подписка на канал\n" +
		"• Подключение как <b>бизнес-бот</b>\n" +
		"• Права на <b>управление сообщениями</b>\n\n" +
		"📎 <b>Навигация:</b>\n" +
		"Используй кнопки ниже для быстрого доступа 👇"

	aboutText = "🤖 <b>EternalMod</b>\n" +
		"━━━━━━━━━━━━━━━━━━\n\n" +
		"🎯 <b>Назначение:</b>\n" +
		"EternalMod — это пранк и бизнес-бот,\n" +
		"который помогает:\n" +
		"• Развлекаться\n" +
		"• Контролировать переписку\n" +
		"• Видеть то, что пытаются скрыть\n\n" +
		"🧩 <b>Основные возможности:</b>\n" +
		"• Пранк-команды\n" +
		"• Эхо-ответы с подколом\n" +
		"• Просмотр удалённых сообщений\n" +
		"• Просмотр изменённых сообщений\n\n" +
		"🔐 <b>Ограничения:</b>\n" +
		"Некоторые функции доступны только при:\n" +
		"• Подписке на канал\n" +
		"• Подключении как бизнес-бот\n" +
		"• Выдаче прав на управление сообщениями\n\n" +
		"🛡 <b>Важно:</b>\n" +
		"Бот работает только в рамках\n" +
		"разрешений Telegram.\n" +
		"Никакого взлома или скрытого доступа.\n\n" +
		"😎 <b>EternalMod</b> — юмор + контроль."

	commandsText = "📋 <b>Описание команд</b>\n\n" +
		"Выбери команду, чтобы узнать подробнее:\n\n" +
		"🎭 <b>/rofl</b> — случайная шутейка\n" +
		"🧽 <b>/mock [текст]</b> — превратить текст в спонжбоб-насмешку\n" +
		"🪙 <b>/coin</b> — подбросить монетку (орёл или решка)\n" +
		"📖 <b>/instruction</b> — инструкция по подключению как бизнес-бота\n" +
		"❓ <b>/help</b> — справка по командам\n" +
		"🚀 <b>/start</b> — начать работу с ботом"

	// instructionText takes the bot mention and the bare username.
	instructionText = "📖 <b>Инструкция по подключению бота как бизнес-бота</b>\n\n" +
		"Чтобы бот мог видеть изменённые и удалённые сообщения в твоих бизнес-чатах, " +
		"нужно подключить его как бизнес-бота.\n\n" +
		"🔹 <b>Шаг 1:</b> Открой настройки Telegram\n" +
		"   • Нажми на три полоски (☰) в левом верхнем углу\n" +
		"   • Выбери «Настройки» → «Telegram Business»\n\n" +
		"🔹 <b>Шаг 2:</b> Подключи бота\n" +
		"   • Нажми «Подключить бота» или «Chatbots»\n" +
		"   • Выбери %s из списка\n" +
		"   • Или введи @%s\n\n" +
		"🔹 <b>Шаг 3:</b> Выдай все разрешения\n" +
		"   • Включи <b>все</b> разрешения на управление сообщениями:\n" +
		"     ✓ Read messages\n" +
		"     ✓ Reply to messages\n" +
		"     ✓ Mark messages as read\n" +
		"     ✓ Delete sent messages\n" +
		"     ✓ Delete received messages\n\n" +
		"🔹 <b>Шаг 4:</b> Готово!\n" +
		"   • Бот получит уведомление о подключении\n" +
		"   • Теперь он будет видеть все изменения и удаления\n" +
		"   • Уведомления будут приходить тебе в личку с ботом\n\n" +
		"💡 <i>После перезапуска бота нужно переподключить его заново.</i>"

	instructionHelpText = "❓ <b>Помощь по подключению</b>\n\n" +
		"Если у тебя возникли проблемы:\n\n" +
		"🔸 <b>Не вижу «Telegram Business» в настройках?</b>\n" +
		"   • Убедись, что у тебя включён бизнес-профиль\n" +
		"   • Бизнес-профиль доступен не во всех странах\n\n" +
		"🔸 <b>Бот не видит изменения/удаления?</b>\n" +
		"   • Проверь, что выданы <b>все</b> разрешения\n" +
		"   • Переподключи бота после выдачи прав\n\n" +
		"🔸 <b>Уведомления не приходят?</b>\n" +
		"   • Уведомления приходят в личку с ботом\n" +
		"   • Убедись, что бот подключён с полными правами\n"

	prankMenuText = "🎛 <b>Пранк-меню (безопасное)</b>\n\n" +
		"Выбери команду или набери её текстом (например: <code>.type привет</code>)."

	typeUsage   = "Команда: <b>.type</b>\nПример: <code>.type привет</code>"
	switchUsage = "Команда: <b>.switch</b>\n\n" +
		"Использование:\n" +
		"• <code>.switch ghbdtn</code> — перевести текст\n" +
		"• Ответь на сообщение с неправильной раскладкой и напиши <code>.switch</code>"
	switchNoText = "❌ В сообщении, на которое ты ответил, нет текста."

	mockUsage  = "Дай текст после /mock, чтобы я смог его передразнить."
	mockButton = "Напиши: /mock твой текст — и я сделаю из него спонжбоб-насмешку 😉"

	// testSubscribedText takes the required channel and the notice cooldown.
	testSubscribedText = "✅ Ты подписан на канал.\n\n" +
		"Чтобы протестировать уведомление:\n" +
		"1. Отпишись от канала %s\n" +
		"2. Подожди %s (cooldown)\n" +
		"3. Измени или удали сообщение в бизнес-чате\n" +
		"4. Или используй команду .тест снова"
	testSentText = "📤 Отправлено тестовое уведомление о необходимости подписки.\n\n" +
		"Если уведомление не пришло, проверь, что бот подключён как бизнес-бот."

	unknownPrivate = "Эта команда недоступна в этом боте 🙂\n" +
		"Открой «📋 Описание команд» → «Пранк-меню», там только безопасные штуки."
	unknownBusiness = "Эта команда недоступна 🙂\nПопробуй <code>.команды</code> для списка."

	subFound    = "✅ Подписка найдена! Доступ открыт."
	subNotFound = "❌ Подписка не найдена. Подпишись и попробуй снова."

	echoText = "Эхо, но с подколом: %s\n/rofl — если надо поугарать"
)

// Reply keyboard labels.
const (
	ButtonRofl        = "🎭 Рофл"
	ButtonDarkRofl    = "🖤 Черные рофлы"
	ButtonMock        = "🧽 Mock текст"
	ButtonCoin        = "🪙 Подбросить монетку"
	ButtonInstruction = "📖 Инструкция"
	ButtonCommands    = "📋 Описание команд"
)

var commandDescriptions = map[string]string{
	"rofl": "🎭 <b>Команда: /rofl</b>\n\n" +
		"<blockquote>Случайная шутейка или рофл. " +
		"Бот пришлёт тебе случайную шутку из своей коллекции.</blockquote>",
	"mock": "🧽 <b>Команда: /mock [текст]</b>\n\n" +
		"<blockquote>Превратить текст в спонжбоб-насмешку. " +
		"Напиши /mock и свой текст, бот сделает из него смешную чередующуюся раскладку " +
		"типа \"ТаКоВоГо ВиДа\".</blockquote>",
	"coin": "🪙 <b>Команда: /coin</b>\n\n" +
		"<blockquote>Подбросить монетку. " +
		"Бот случайно выберет \"Орёл\" или \"Решка\" и пришлёт результат.</blockquote>",
	"instruction": "📖 <b>Команда: /instruction</b>\n\n" +
		"<blockquote>Инструкция по подключению бота как бизнес-бота. " +
		"Покажет пошаговую инструкцию, как подключить бота в Telegram Business " +
		"и выдать ему права на управление сообщениями.</blockquote>",
	"help": "❓ <b>Команда: /help</b>\n\n" +
		"<blockquote>Получить справку по командам. " +
		"Бот напомнит, какие команды доступны и что они делают.</blockquote>",
	"start": "🚀 <b>Команда: /start</b>\n\n" +
		"<blockquote>Начать работу с ботом. " +
		"Покажет приветственное сообщение и список доступных команд.</blockquote>",
}
