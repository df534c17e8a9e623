package reminder

import (
	"fmt"
	"strings"

	"github.com/lalithlochan/rentals/internal/calendar"
	"github.com/lalithlochan/rentals/internal/db"
)

const (
	reminderTitle = "Recordatorio de pago"
	overdueTitle  = "⚠️ Pago vencido"
)

// OverduePolicy controls how often an overdue notice repeats while a
// tenancy stays unpaid.
type OverduePolicy string

const (
	// OverdueDaily emits one overdue notice per calendar day.
	OverdueDaily OverduePolicy = "daily"
	// OverdueOnce emits a single overdue notice per missed due date.
	OverdueOnce OverduePolicy = "once"
)

// ParseOverduePolicy validates a configured policy name. Empty means daily.
func ParseOverduePolicy(s string) (OverduePolicy, error) {
	switch OverduePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverdueDaily:
		return OverdueDaily, nil
	case OverdueOnce:
		return OverdueOnce, nil
	default:
		return "", fmt.Errorf("unknown overdue policy %q (want daily or once)", s)
	}
}

// Notice is a notification the emitter decided to write.
type Notice struct {
	Type     string
	Title    string
	Message  string
	DedupKey string
}

// Decide returns the notices a candidate earns on the given day. The
// reminder fires only on the exact threshold day; the overdue notice fires
// on every day after the due date, subject to policy.
func Decide(c Candidate, today calendar.Date, policy OverduePolicy) []Notice {
	t := c.Tenancy
	var notices []Notice

	if c.DaysUntilDue == t.DaysBefore {
		notices = append(notices, Notice{
			Type:  db.TypePaymentReminder,
			Title: reminderTitle,
			Message: fmt.Sprintf("Tu pago de renta para %s vence en %s (%s).",
				placeLabel(t), dayCount(c.DaysUntilDue), t.NextPaymentDue.Display()),
			DedupKey: fmt.Sprintf("%s:%s:%s", db.TypePaymentReminder, t.ApplicationID, t.NextPaymentDue),
		})
	}

	if c.DaysUntilDue < 0 {
		overdue := -c.DaysUntilDue
		key := fmt.Sprintf("%s:%s:%s", db.TypePaymentOverdue, t.ApplicationID, t.NextPaymentDue)
		if policy != OverdueOnce {
			key += ":" + today.String()
		}
		notices = append(notices, Notice{
			Type:  db.TypePaymentOverdue,
			Title: overdueTitle,
			Message: fmt.Sprintf("Tu pago de renta para %s está vencido por %s. Por favor realiza el pago lo antes posible.",
				placeLabel(t), dayCount(overdue)),
			DedupKey: key,
		})
	}

	return notices
}

func placeLabel(t *db.DueTenancy) string {
	if t.RoomNumber != nil && *t.RoomNumber != "" {
		return fmt.Sprintf("%s - Habitación %s", t.ResidenceTitle, *t.RoomNumber)
	}
	return t.ResidenceTitle
}

func dayCount(n int) string {
	if n == 1 {
		return "1 día"
	}
	return fmt.Sprintf("%d días", n)
}
