package buildsbot

import (
	"fmt"
	"strings"
	"time"

	"buildsbot/internal/admins"
	"buildsbot/internal/model"
	"buildsbot/internal/stats"
)

// Main menu reply-button labels. Text routing matches on them verbatim.
const (
	btnBuilds     = "📦 Доступные сборки"
	btnInfo       = "ℹ️ Информация"
	btnVacancies  = "👨‍💼 Вакансии"
	btnAds        = "📢 Реклама"
	btnYoutubers  = "🎮 Для ютуберов"
	btnAdminPanel = "⚙️ Админ-панель"
)

const mainAdminContact = "@zavremya"

const (
	textAdminPanel       = "⚙️ <b>Панель администратора</b>"
	textNoAccessCommand  = "У вас нет доступа к этой команде."
	textNoAccessPanel    = "У вас нет доступа к админ-панели."
	textAdminStaffOnly   = "Команда /admin доступна только в чате сотрудников для обычных администраторов."
	textPanelStaffOnly   = "Админ-панель доступна только в чате сотрудников для обычных администраторов."
	textMainAdminOnly    = "❌ Только главный администратор может использовать эту команду."
	textNoBuilds         = "На данный момент нет доступных сборок."
	textBuildNotFound    = "Сборка не найдена."
	textAdminNotFound    = "❌ Администратор не найден."
	textCannotRemoveMain = "❌ Нельзя удалить главного администратора."

	textStartInStaffChat = "❌ <b>Команда /start не работает в этом чате.</b>\n\n" +
		"Используйте /help для списка команд.\n\n" +
		"<i>Это сообщение удалится через 5 секунд...</i>"

	textAskAdminUsername = "Введите юзернейм пользователя (без @) для добавления в администраторы:"
	textAskResetUsername = "Введите юзернейм пользователя (без @):"

	textAskTitle       = "Введите название сборки:"
	textAskAuthor      = "Введите автора сборки (никнейм ютубера):"
	textAskDescription = "Введите описание сборки:"
	textAskCover       = "Отправьте обложку (превью) сборки (фото):"
	textAskLink        = "Введите ссылку для скачивания сборки:"
	textAskPrice       = "Введите цену сборки в рублях:"
	textAskContact     = "Введите контакт для связи (юзернейм в Telegram):"
	textBadPrice       = "Пожалуйста, введите корректную цену (целое число больше 0):"
	textPaidForbidden  = "❌ Обычные администраторы не могут создавать платные сборки."

	textSentToModeration = "✅ Сборка отправлена на модерацию. Ожидайте подтверждения."

	textLimitWasReset = "🎉 Ваш лимит на скачивание сборок был сброшен администратором!"
	textLimitRenewed  = "🎉 Ваш лимит на скачивание сборок сброшен!\nТеперь вы можете выбрать новую сборку."

	textAdminRightsRevoked = "⚠️ Ваши права администратора в боте со сборками Amazing Online были отозваны."

	textAdminGranted = "🎉 Вас добавили в администраторы бота со сборками Amazing Online!\n\n" +
		"Теперь вы можете:\n" +
		"• Добавлять сборки (требуют модерации)\n" +
		"• Просматривать статистику\n" +
		"• Использовать команду /admin для доступа к панели"

	textKeyboardRemoved = "✅ Клавиатура удалена."
	textCleanupCommands = "📋 <b>Команды для очистки чата:</b>\n\n" +
		"<code>/clearkeyboard</code> - удалить клавиатуры\n" +
		"<code>/admin</code> - панель администратора\n" +
		"<code>/clean</code> - удалить последние сообщения"
	textCleanFailed = "❌ Не удалось удалить сообщения."

	textAdvertUsage     = "Использование: /advert [текст]"
	textAdvertSending   = "📤 <b>Отправляю...</b>"
	textAdvertCancelled = "❌ <b>Рассылка отменена.</b>\n\nОбъявление не было отправлено."
	textAdvertNoText    = "❌ Текст не найден"
	textAdvertNoUsers   = "❌ <b>Ошибка:</b> Нет пользователей для рассылки."

	textResetPayment = `<b>🔄 Сброс лимита загрузки</b>

Для сброса лимита на скачивание сборок:

1. <b>Оплатите 100 рублей</b>
2. <b>Отправьте скриншот об оплате</b>
3. <b>Укажите свой юзернейм</b>

📞 <b>Контакт для оплаты:</b> ` + mainAdminContact + `

После оплаты ваш лимит будет сброшен в течение 24 часов.`
)

const textInfo = `<b>📢 Информация о боте:</b>

🎮 <b>Сборки Amazing Online</b>
В этом боте собраны лучшие сборки от популярных ютуберов по игре Amazing Online.

⏳ <b>Лимиты</b>
• Вы можете скачать одну сборку бесплатно каждые 24 часа
• Для сброса лимита: 100 рублей
• По вопросам оплаты: ` + mainAdminContact + `

💰 <b>Платные сборки</b>
• Некоторые сборки доступны за плату
• Оплата напрямую автору сборки
• После оплаты вы получите ссылку на скачивание

<b>Выберите раздел для получения подробной информации:</b>`

const textVacancies = `<b>👨‍💼 Требуются администраторы</b>

Мы ищем активных администраторов для развития нашего бота со сборками Amazing Online.

<b>📌 Обязанности:</b>
• Публикация новых сборок в боте
• Реклама и продвижение бота
• Модерация контента
• Взаимодействие с пользователями

<b>💰 Оплата:</b>
• Уникальные сборки и моды из приват-блоков популярных ютуберов
• Эксклюзивные материалы по игре Amazing Online
• При активной работе - зарплата в реальных деньгах
• Бонусы за достижение целей

<b>🎁 Дополнительные плюшки:</b>
• Ранний доступ к новым сборкам
• Эксклюзивные модификации
• Приватные материалы от топовых ютуберов
• Возможность сотрудничества с известными авторами

<b>📝 Требования:</b>
• Знание игры Amazing Online
• Активность в Telegram
• Ответственность и коммуникабельность
• Опыт администрирования - приветствуется

<b>📞 Контакты для отклика:</b>
` + mainAdminContact + `

Отправьте краткое сообщение о себе и почему вы хотите стать администратором.`

const textAdvertInfo = `<b>📢 Размещение рекламы в боте</b>

Привлекайте новых подписчиков и продвигайте свой контент через нашего бота!

<b>🎯 Целевая аудитория:</b>
• Игроки Amazing Online
• Поклонники сборок и модов
• Активные пользователи Telegram

<b>💎 Форматы рекламы:</b>
• Реклама в главном меню бота
• Упоминание в описаниях сборок
• Отдельные рекламные сообщения
• Реклама при скачивании сборок

<b>💰 Стоимость рекламы:</b>
• <b>250 рублей</b> - базовый пакет
• 500 рублей - расширенный пакет
• 1000 рублей - премиум размещение

<b>📊 Охват:</b>
Бот активно развивается и привлекает новых пользователей ежедневно.

<b>🎮 Для ютуберов:</b>
• Продвижение вашего YouTube канала
• Привлечение подписчиков в Telegram
• Реклама ваших сборок

<b>📞 Контакты для заказа рекламы:</b>
` + mainAdminContact + `

Укажите в сообщении:
1. Тип рекламы
2. Ссылки на ваш контент
3. Желаемый срок размещения`

const textYoutubers = `<b>🎮 Сотрудничество с ютуберами</b>

Размещайте свои сборки Amazing Online в нашем боте и привлекайте больше зрителей!

<b>🤝 Преимущества сотрудничества:</b>
• Бесплатное размещение ваших сборок
• Привлечение новой аудитории к вашему контенту
• Увеличение просмотров на YouTube
• Рост подписчиков в Telegram
• Возможность монетизации через платные сборки

<b>📦 Размещение сборок:</b>
• Бесплатные сборки - бесплатное размещение
• Платные сборки - процент от продаж или фиксированная плата
• Продвижение вашего канала в описаниях сборок
• Упоминание в рекламных материалах бота

<b>💰 Продажа сборок:</b>
• Размещайте платные сборки в боте
• Получайте оплату напрямую от пользователей
• Мы помогаем с технической стороной
• Поддержка и консультации

<b>📢 Реклама вашего канала:</b>
• Стоимость рекламы - 250 рублей
• Размещение в разделе информации бота
• Упоминание в рассылках
• Продвижение среди целевой аудитории

<b>📞 Контакты для сотрудничества:</b>
` + mainAdminContact + `

Пришлите ссылку на ваш YouTube канал и примеры сборок для обсуждения условий.`

const textStaffWelcome = `👋 <b>Добро пожаловать в чат сотрудников!</b>

🎉 <b>Вас автоматически назначили администратором бота!</b>

📋 <b>Теперь вы можете:</b>
• Использовать команду /admin
• Добавлять бесплатные сборки
• Просматривать статистику бота
• Отправлять сборки на модерацию

📌 <b>Важные правила:</b>
• Все сборки проходят модерацию
• Команда /admin работает только в чате сотрудников

🔧 <b>Для начала работы:</b>
1. Используйте команду /admin
2. Изучите раздел "ℹ️ Информация"
3. Прочитайте правила добавления сборок

<b>Главный администратор:</b> ` + mainAdminContact

const textStaffGoodbye = `⚠️ <b>Вы вышли из чата сотрудников</b>

Ваши права администратора бота были автоматически сняты.

📋 <b>Вы больше не можете:</b>
• Использовать команду /admin
• Добавлять новые сборки
• Просматривать статистику

✅ <b>Вы сохраняете:</b>
• Доступ ко всем функциям обычного пользователя
• Возможность скачивать сборки
• Все ранее добавленные вами сборки остаются в боте

<b>Для восстановления прав:</b>
Вернитесь в чат сотрудников или обратитесь к главному администратору.

📞 <b>Контакты:</b> ` + mainAdminContact

func formatStaffOnlyCommand(chatID int64) string {
	return fmt.Sprintf("❌ Эта команда доступна только в чате сотрудников (ID: %d).", chatID)
}

func formatCleanDone(n int) string {
	return fmt.Sprintf("✅ Удалено %d сообщений.", n)
}

func formatWelcome(totalUsers, totalDownloads, totalBuilds int) string {
	return fmt.Sprintf(`<b>👋 Добро пожаловать в сборник Amazing Online!</b>

Здесь собраны лучшие сборки от популярных ютуберов по игре Amazing Online.

📊 <b>Статистика бота:</b>
• Пользователей: %d
• Сборок скачано: %d
• Доступных сборок: %d

💡 <b>Возможности:</b>
• Выбор сборки 1 раз в 24 часа
• Платные и бесплатные сборки
• Возможность сбросить лимит

<b>Для начала работы нажмите "📦 Доступные сборки"</b>`,
		totalUsers, totalDownloads, totalBuilds)
}

func categoryLabel(c model.Category) string {
	if c == model.CategoryPaid {
		return "Платная"
	}
	return "Бесплатная"
}

func formatBuildDetails(b *model.Build, canDownload bool, wait string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>📁 %s</b>\n<b>👤 Автор:</b> %s\n\n<b>📝 Описание:</b>\n%s\n\n",
		b.Title, b.Author, b.Description)
	fmt.Fprintf(&sb, "<b>💰 Статус:</b> %s сборка", categoryLabel(b.Category))

	if b.Category == model.CategoryPaid {
		fmt.Fprintf(&sb, "\n<b>💳 Цена:</b> %d рублей", b.Price)
		fmt.Fprintf(&sb, "\n<b>📞 Контакт для связи:</b> %s", b.Contact)
		sb.WriteString("\n\n<b>Для покупки свяжитесь с продавцом</b>")
	} else if !canDownload {
		fmt.Fprintf(&sb, "\n\n⏳ <b>Вы сможете скачать эту сборку через:</b> %s", wait)
	} else {
		sb.WriteString("\n\n✅ <b>Готово к скачиванию</b>")
	}
	return sb.String()
}

func formatModerationPreview(p *model.PendingBuild) string {
	return fmt.Sprintf(`🆕 <b>Новая сборка на модерации:</b>

📁 <b>Название:</b> %s
👤 <b>Автор:</b> %s
💰 <b>Тип:</b> %s
👨‍💼 <b>Добавил:</b> @%s`,
		p.Title, p.Author, categoryLabel(p.Category), p.RequesterUsername)
}

func formatReviewCard(p *model.PendingBuild) string {
	price := "Бесплатно"
	contact := "Не требуется"
	if p.Category == model.CategoryPaid {
		price = fmt.Sprintf("%d", p.Price)
		contact = p.Contact
	}
	return fmt.Sprintf(`<b>📋 Сборка на модерации:</b>

📁 <b>Название:</b> %s
👤 <b>Автор:</b> %s
📝 <b>Описание:</b> %s
💰 <b>Тип:</b> %s
💳 <b>Цена:</b> %s
📞 <b>Контакт:</b> %s
👨‍💼 <b>Добавил:</b> @%s
🕒 <b>Дата добавления:</b> %s
🔗 <b>Ссылка:</b> %s`,
		p.Title, p.Author, truncate(p.Description, 200), categoryLabel(p.Category),
		price, contact, p.RequesterUsername, truncate(p.AddedAt, 10), truncate(p.DownloadLink, 50))
}

func formatConfirmDelete(b *model.Build) string {
	return fmt.Sprintf(`<b>Вы уверены, что хотите удалить сборку?</b>

📁 <b>Название:</b> %s
👤 <b>Автор:</b> %s
💰 <b>Тип:</b> %s

<i>Это действие нельзя отменить!</i>`,
		b.Title, b.Author, categoryLabel(b.Category))
}

func formatStats(st model.Stats, activeToday int) string {
	return fmt.Sprintf(`<b>📊 Статистика бота:</b>

👥 <b>Пользователи:</b>
• Всего пользователей: %d
• Активных сегодня: %d
• Всего скачиваний: %d

📦 <b>Сборки:</b>
• Всего сборок: %d
• Бесплатных: %d
• Платных: %d

💰 <b>Финансы:</b>
• Сбросов лимита: %d
• Примерный доход: %d руб.`,
		st.TotalUsers, activeToday, st.TotalDownloads,
		st.BuildsAdded, st.FreeBuildsCount, st.PaidBuildsCount,
		st.TotalResets, st.TotalResets*100)
}

func formatSyncReport(r stats.Report, when time.Time) string {
	return fmt.Sprintf(`✅ <b>Статистика синхронизирована!</b>

📊 <b>До синхронизации:</b>
• Пользователей: %d
• Сборок: %d
• Скачиваний: %d

📈 <b>После синхронизации:</b>
• Пользователей: %d
• Сборок: %d (%d бесплатных, %d платных)
• Скачиваний: %d

🔄 <b>Изменения:</b>
• Пользователи: %+d
• Сборки: %+d
• Скачивания: %+d

<i>Статистика обновлена в %s</i>`,
		r.Before.TotalUsers, r.Before.BuildsAdded, r.Before.TotalDownloads,
		r.After.TotalUsers, r.After.BuildsAdded, r.After.FreeBuildsCount, r.After.PaidBuildsCount,
		r.After.TotalDownloads,
		r.After.TotalUsers-r.Before.TotalUsers,
		r.After.BuildsAdded-r.Before.BuildsAdded,
		r.After.TotalDownloads-r.Before.TotalDownloads,
		when.Format("15:04:05"))
}

func formatAdvertPreview(text string, when time.Time) string {
	return fmt.Sprintf(`🔔 <b>ПРЕДПРОСМОТР РАССЫЛКИ</b>

%s

📅 %s

<b>Отправить всем пользователям?</b>`,
		truncateEllipsis(text, 300), when.Format("02.01.2006 15:04"))
}

func formatAdvertMessage(text string, when time.Time) string {
	return fmt.Sprintf("🔔 <b>ОБЪЯВЛЕНИЕ ОТ ГЛАВНОГО АДМИНИСТРАТОРА</b> 🔔\n\n%s\n\n📅 <i>%s</i>",
		text, when.Format("02.01.2006 15:04"))
}

func formatBroadcastReport(total, sent, blocked, failed int, when time.Time) string {
	percent := 0.0
	if total > 0 {
		percent = float64(sent) / float64(total) * 100
	}
	return fmt.Sprintf(`✅ <b>РАССЫЛКА ЗАВЕРШЕНА</b>

📊 <b>Результаты:</b>
• Всего пользователей: %d
• Успешно отправлено: %d ✅
• Заблокировали бота: %d 🚫
• Ошибок отправки: %d ❌
• Процент доставки: %.1f%%

⏱️ <b>Время завершения:</b> %s

📈 <b>Статистика:</b>
• Активных пользователей: %d
• Неактивных (заблокировали): %d`,
		total, sent, blocked, failed, percent, when.Format("15:04:05"), sent, blocked)
}

func progressBar(done, total int) string {
	percent := 0
	if total > 0 {
		percent = done * 100 / total
		if percent > 100 {
			percent = 100
		}
	}
	filled := percent / 10
	return strings.Repeat("█", filled) + strings.Repeat("▫️", 10-filled) + fmt.Sprintf(" %d%%", percent)
}

func formatHelp(mainAdminID, staffChatID int64, when time.Time) string {
	return fmt.Sprintf(`<b>🤖 ПОЛНЫЙ СПИСОК КОМАНД БОТА</b>

<u>📋 ОСНОВНЫЕ КОМАНДЫ:</u>
<code>/start</code> - Начать работу с ботом
<code>/help</code> - Показать это меню (только главный админ)

<u>👑 КОМАНДЫ ГЛАВНОГО АДМИНА:</u>
<code>/admin</code> - Панель администратора
<code>/syncstats</code> - Синхронизировать статистику с реальными данными
<code>/removeadmin @username</code> - Удалить администратора по юзернейму
<code>/admininfo</code> - Подробная информация об администраторах
<code>/advert</code> - Подать объявление

<u>⚙️ КОМАНДЫ АДМИНИСТРАТОРОВ:</u>
<code>/admin</code> - Панель администратора (в чате сотрудников)

<u>🎯 КОМАНДЫ ИЗ КЛАВИАТУРЫ:</u>
• 📦 Доступные сборки - Показать все сборки
• ℹ️ Информация - Информация о боте
• 👨‍💼 Вакансии - Информация о вакансиях
• 📢 Реклама - Информация о рекламе
• 🎮 Для ютуберов - Информация для ютуберов
• ⚙️ Админ-панель - Панель администратора (только для админов)

<u>🛠️ ФУНКЦИИ АДМИН-ПАНЕЛИ:</u>
• ➕ Добавить сборку - Добавить новую сборку
• 📊 Статистика - Показать статистику бота
• 👥 Администраторы - Список администраторов
• 🔓 Сбросить лимит - Сбросить лимит пользователю
• ⏳ Ожидающие сборки - Сборки на модерации
• 📋 Все сборки - Список всех сборок
• 🗑️ Удалить сборку - Удалить сборку из каталога
• 👤 Добавить админа - Добавить нового администратора
• 🗑️ Удалить админа - Удалить администратора
• 🏠 Главное меню - Вернуться в главное меню

<u>🔄 РАБОЧИЕ ПРОЦЕССЫ:</u>
• Автосинхронизация статистики - Раз в 24 часа
• Проверка уведомлений - Каждую минуту
• Ограничение скачивания - 1 сборка в 24 часа
• Модерация контента - Только главным админом

<b>⚠️ ОСОБЫЕ ПРАВИЛА ДОСТУПА:</b>
• Главный админ (ID: <code>%d</code>) - Полный доступ везде
• Обычные админы - Только в чате сотрудников (ID: <code>%d</code>)
• /admin - Для обычных админов работает ТОЛЬКО в чате сотрудников

<i>Последнее обновление: %s</i>`,
		mainAdminID, staffChatID, when.Format("02.01.2006 15:04"))
}

func formatAdminsList(entries []admins.Entry) string {
	if len(entries) == 0 {
		return "Нет зарегистрированных администраторов."
	}
	var sb strings.Builder
	sb.WriteString("<b>👨‍💼 Администраторы:</b>\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "• @%s\n  Сборок добавлено: %d\n\n", e.Admin.Username, e.Admin.BuildsAdded)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Cut on a rune boundary.
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func truncateEllipsis(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
