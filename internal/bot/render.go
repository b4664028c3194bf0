package bot

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/engine"
)

// Renderer превращает результат движка в текст сообщения Telegram.
type Renderer struct {
	loc *time.Location
}

// NewRenderer создаёт рендерер; даты транзакций показываются в поясе loc.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// Render возвращает текст ответа. Ошибки отдаются пользователю как есть.
func (r *Renderer) Render(res *engine.Result) string {
	if res == nil {
		return engine.GenericErrorMessage
	}

	switch p := res.Content.(type) {
	case string:
		return p
	case *engine.HelpPayload:
		return r.help(p)
	case *engine.BalancePayload:
		return fmt.Sprintf("💰 %s, your balance is %s", p.User.DisplayName, common.FormatPoints(p.User.Balance))
	case *engine.CataloguePayload:
		return r.catalogue(p)
	case *engine.PurchasePayload:
		pu := p.Purchase
		return fmt.Sprintf("✅ You bought %s for %s. %s received the points.\nYour new balance: %s",
			pu.Item.Name, common.FormatPoints(pu.Cost), pu.Recipient, common.FormatPoints(pu.NewBalance))
	case *engine.BargainInitiatedPayload:
		return r.bargainInitiated(p)
	case *engine.BargainAcceptedPayload:
		return fmt.Sprintf("🤝 Deal! %s bought %s from you for %s (list price %s).\nYour new balance: %s",
			p.Offerer, p.ItemName, common.FormatPoints(p.Price), common.FormatPoints(p.OriginalPrice),
			common.FormatPoints(p.NewBalance))
	case *engine.BargainRejectedPayload:
		return fmt.Sprintf("❌ You rejected %s's offer of %s for %s (list price %s).",
			p.Offerer, common.FormatPoints(p.OfferedPrice), p.ItemName, common.FormatPoints(p.OriginalPrice))
	case *engine.TransactionsPayload:
		return r.transactions(p)
	case *engine.AllInPayload:
		return fmt.Sprintf("🎲 All in! You sent %s to %s.\nYour new balance: %s",
			common.FormatPoints(p.Amount), p.Recipient, common.FormatPoints(p.NewBalance))
	case *engine.RobinHoodPayload:
		return fmt.Sprintf("🏹 Robin Hood strikes! You took %s from %s.\nYour new balance: %s",
			common.FormatPoints(p.Amount), p.Victim, common.FormatPoints(p.NewBalance))
	case *engine.StealPayload:
		if p.Success {
			return fmt.Sprintf("🦝 Success! You stole %s from %s.\nYour new balance: %s",
				common.FormatPoints(p.Amount), p.Opponent, common.FormatPoints(p.NewBalance))
		}
		return fmt.Sprintf("🚨 Caught! You paid %s %s.\nYour new balance: %s",
			p.Opponent, common.FormatPoints(p.Amount), common.FormatPoints(p.NewBalance))
	case *engine.RulesPayload:
		return r.rules(p)
	case *engine.MissionPayload:
		return r.mission(p)
	case *engine.MissionCompletedPayload:
		return r.missionCompleted(p)
	}

	return fmt.Sprintf("%s: %v", res.Type, res.Content)
}

func (r *Renderer) help(p *engine.HelpPayload) string {
	var sb strings.Builder
	sb.WriteString("📖 Available commands:\n")
	for _, c := range p.Commands {
		sb.WriteString("\n!")
		sb.WriteString(c.Usage)
		sb.WriteString(": ")
		sb.WriteString(c.Description)
		if len(c.Aliases) > 0 {
			sb.WriteString(" (also: ")
			sb.WriteString(strings.Join(c.Aliases, ", "))
			sb.WriteString(")")
		}
	}
	return sb.String()
}

func (r *Renderer) catalogue(p *engine.CataloguePayload) string {
	if len(p.Items) == 0 {
		return "🛍 The catalogue is empty"
	}

	var sb strings.Builder
	sb.WriteString("🛍 Catalogue:\n")
	for _, item := range p.Items {
		fmt.Fprintf(&sb, "\n• %s (%s): %s\n  %s", item.Name, item.Slug, common.FormatPoints(item.Price), item.Description)
	}
	return sb.String()
}

func (r *Renderer) bargainInitiated(p *engine.BargainInitiatedPayload) string {
	o := p.Offer
	text := fmt.Sprintf("🤝 %s offers %s for %s (list price %s, %d%% off).\n%s, reply !accept or !reject.",
		o.Offerer, common.FormatPoints(o.OfferedPrice), o.Item.Name, common.FormatPoints(o.OriginalPrice),
		o.DiscountPercentage, o.Recipient)
	if o.Replaced {
		text += "\nThe previous offer was withdrawn."
	}
	return text
}

func (r *Renderer) transactions(p *engine.TransactionsPayload) string {
	if len(p.Transactions) == 0 {
		return "📋 No transactions yet"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Last %s:\n", common.Pluralize(len(p.Transactions), "transaction", "transactions"))
	for _, tx := range p.Transactions {
		amount := tx.Amount
		if tx.SenderID == p.UserID {
			amount = -amount
		}

		what := "transfer"
		switch {
		case tx.IsSteal():
			what = "steal"
		case tx.ItemName != nil:
			what = *tx.ItemName
		}

		fmt.Fprintf(&sb, "\n%s | %s | %s → %s | %s",
			common.FormatDateTime(tx.CreatedAt, r.loc), common.FormatSignedPoints(amount),
			tx.SenderName, tx.ReceiverName, what)
	}
	return sb.String()
}

func (r *Renderer) rules(p *engine.RulesPayload) string {
	if len(p.Rules) == 0 {
		return "📜 No active rules"
	}

	var sb strings.Builder
	sb.WriteString("📜 Rules:\n")
	for _, rule := range p.Rules {
		fmt.Fprintf(&sb, "\n• %s [%s]: %s", rule.Name, rule.Type, rule.Description)
	}
	return sb.String()
}

func (r *Renderer) mission(p *engine.MissionPayload) string {
	m := p.Mission
	status := "in progress"
	if m.IsCompleted {
		status = "completed ✅"
	}
	return fmt.Sprintf("🎯 Today's mission: %s\n%s\nReward: %s off your next purchase\nStatus: %s",
		m.Mission.Name, m.Mission.Description, common.FormatPoints(m.Mission.Reward), status)
}

func (r *Renderer) missionCompleted(p *engine.MissionCompletedPayload) string {
	text := fmt.Sprintf("🎉 Mission completed: %s", p.Mission.Mission.Name)
	if p.RewardCancelled {
		return text + "\nEveryone completed their missions today, so the rewards cancel out."
	}
	return text + fmt.Sprintf("\nYou earned %s off your next purchase.", common.FormatPoints(p.Reward))
}
