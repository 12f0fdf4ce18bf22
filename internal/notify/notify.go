// Package notify delivers price alerts to users. Delivery itself belongs to
// the chat front-end; this package builds the alert and hands it over, either
// to the log or to a RabbitMQ queue the front-end consumes.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Kind tells the two alert types apart.
type Kind string

const (
	KindPriceDrop     Kind = "price_drop"
	KindTargetReached Kind = "target_reached"
)

// Message is one alert for one user about one product.
type Message struct {
	Kind         Kind            `json:"kind"`
	UserID       int64           `json:"userId"`
	ProductID    int64           `json:"productId"`
	Title        string          `json:"title"`
	Currency     string          `json:"currency"`
	NewPrice     decimal.Decimal `json:"newPrice"`
	OldPrice     decimal.Decimal `json:"oldPrice,omitzero"`    // drop alerts
	TargetPrice  decimal.Decimal `json:"targetPrice,omitzero"` // target alerts
	AffiliateURL string          `json:"affiliateUrl"`
}

// Notifier hands a message to the delivery channel. An error means this
// message was not delivered; callers on the scheduler path log and move on.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Text renders the message the way it is shown to the user.
func (m Message) Text() string {
	var b strings.Builder
	switch m.Kind {
	case KindPriceDrop:
		fmt.Fprintf(&b, "🔥 Price Drop Alert!\n%s is now %s%s (was %s%s)\n",
			m.Title, m.Currency, FormatAmount(m.NewPrice), m.Currency, FormatAmount(m.OldPrice))
	case KindTargetReached:
		fmt.Fprintf(&b, "🎯 Target Price Reached!\n%s is now %s%s (target: %s%s)\n",
			m.Title, m.Currency, FormatAmount(m.NewPrice), m.Currency, FormatAmount(m.TargetPrice))
	default:
		fmt.Fprintf(&b, "%s is now %s%s\n", m.Title, m.Currency, FormatAmount(m.NewPrice))
	}
	b.WriteString(m.AffiliateURL)
	return b.String()
}

// FormatAmount renders d with two decimals and comma thousands separators,
// e.g. 1234567.5 → "1,234,567.50".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Round(2)
	abs := fixed.Abs()

	sign := ""
	if fixed.IsNegative() {
		sign = "-"
	}
	_, frac, _ := strings.Cut(abs.StringFixed(2), ".")
	return sign + humanize.BigComma(abs.Truncate(0).BigInt()) + "." + frac
}

// LogNotifier writes alerts to the log instead of delivering them. It is the
// default when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "price alert",
		slog.String("kind", string(msg.Kind)),
		slog.Int64("user_id", msg.UserID),
		slog.Int64("product_id", msg.ProductID),
		slog.String("price", msg.NewPrice.String()),
		slog.String("currency", msg.Currency),
	)
	return nil
}
