package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Dialog defaults substituted for empty free-text answers.
const (
	defaultIncomeSource = "Daromad"
	defaultExpenseTitle = "xarajat"
	defaultCategory     = "other"
	incomeCategory      = "income"
)

// Inline keyboard callback payloads.
const (
	cbAddIncome   = "add_income"
	cbAddExpense  = "add_expense"
	cbReportToday = "report_today"
	cbReportMonth = "report_month"
)

const (
	msgWelcome = "Hisob-Kitob telegram botiga xush kelibsiz\nPastdagi buyruqlardan birini tanlang"

	msgHelp = `📚 *Yordam — Finance Bot*

Ushbu bot bilan siz oylik va kundalik daromad va xarajatlarni yozib borishingiz mumkin.

Asosiy buyruqlar:
/start — Asosiy menyuni ko'rsatadi
/help — Ushbu yordam xabari
/add_income — Yangi daromad qo'shish (bot sizdan manba va summani so'raydi)
/add_expense — Yangi xarajat qo'shish (bot sizdan nom, summa va kategoriya so'raydi)
/set_limit — Oylik xarajat limitini o'rnatish
/report_today — Bugungi hisobot (daromad / xarajat)
/report_month — Oylik hisobot (daromad / xarajat)
/balance — Balansni ko'rish

🔔 Eslatma:
• Bot yangi xarajat qo'shilganda avtomatik tekshiradi — agar shu oy xarajatlaringiz daromaddan oshsa, ogohlantiradi.`

	msgAskIncomeSource    = "Daromad manbayini kiriting (masalan ish haqi):"
	msgAskIncomeAmount    = "Summasini kiriting (raqam, masalan, 500000)"
	msgAskExpenseTitle    = "Xarajat nomini kiriting (masalan: non, transport):"
	msgAskExpenseAmount   = "Summasini kiriting (raqam, masalan: 20000):"
	msgAskExpenseCategory = "Kategoriya kiriting (masalan: oziq-ovqat, transport):"
	msgAskLimitAmount     = "Oylik limit summasini kiriting (raqam, masalan: 1000000):"

	msgInvalidAmount = "Iltimos haqiqiy raqam kiriting. Jarayon bekor qilindi."
	msgInternalError = "Xatolik yuz berdi. Iltimos keyinroq qayta urinib ko'ring."
)

const (
	fmtIncomeSaved     = "Daromad saqlandi: %s - %s"
	fmtExpenseSaved    = "Xarajat saqlandi: %s — %s so'm, kategoriya: %s"
	fmtLimitSaved      = "Oylik limit saqlandi: %s so'm."
	fmtLimitExceeded   = "⚠️ Diqqat! Sizning oy limitingiz (%s) oshdi. Jami xarajat: %s."
	fmtOverBudget      = "⚠️ Eslatma: shu oy jami xarajatlaringiz (%s) jami daromadingizdan (%s) %s so'm ko'p. Iltimos byudjetni tekshiring."
	fmtPositiveBalance = "✅ Hozirgi oylik balans ijobiy: %s so'm qolgan."
	fmtTodayReport     = "📊 Bugungi hisobot (%s):\n\nKirim: %s\nChiqim: %s"
	fmtMonthReport     = "📅 Oylik hisobot (%s):\n\nKirim: %s\nChiqim: %s"
	fmtBalance         = "💰 Sizning balansingiz:\n\nJami kirim: %s\nJami chiqim: %s\nBalans: %s"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Kirim qo'shish", cbAddIncome),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖ Chiqim qo'shish", cbAddExpense),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Kunlik xarajat", cbReportToday),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Oylik xarajat", cbReportMonth),
		),
	)
}
