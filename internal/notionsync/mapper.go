package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names of the daily rollup database.
const (
	PropDay                = "Day"
	PropDate               = "Date"
	PropRunID              = "Run ID"
	PropDailyWithdrawals   = "Daily Withdrawals"
	PropDailyDeposits      = "Daily Deposits"
	PropClosingBalance     = "Closing Balance"
	PropCumulativeSpend    = "Cumulative Spend"
	PropCumulativeDeposits = "Cumulative Deposits"
	PropTransactions       = "Transactions"
)

// DailyRowToNotionProperties converts one rollup row to Notion properties.
// The title is the ISO date, which also keys the page for updates.
func DailyRowToNotionProperties(runID string, row ledger.DailyRow) notionapi.Properties {
	r := row.Rounded()

	props := notionapi.Properties{
		PropDay: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: r.Date.String(),
					},
				},
			},
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: notionDate(r.Date),
			},
		},
		PropDailyWithdrawals:   numberProperty(r.DailyWithdrawals),
		PropDailyDeposits:      numberProperty(r.DailyDeposits),
		PropClosingBalance:     numberProperty(r.ClosingBalance),
		PropCumulativeSpend:    numberProperty(r.CumulativeSpend),
		PropCumulativeDeposits: numberProperty(r.CumulativeDeposits),
		PropTransactions: notionapi.NumberProperty{
			Number: float64(r.TransactionCount),
		},
	}

	if runID != "" {
		props[PropRunID] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: runID,
					},
				},
			},
		}
	}

	return props
}

func numberProperty(d decimal.Decimal) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: d.InexactFloat64()}
}

func notionDate(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &nd
}

// extractDayKey returns the page's title text, or "" when it has none.
func extractDayKey(page notionapi.Page) string {
	prop, ok := page.Properties[PropDay]
	if !ok {
		return ""
	}

	var title []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		title = p.Title
	case notionapi.TitleProperty:
		title = p.Title
	}

	if len(title) == 0 {
		return ""
	}
	if title[0].PlainText != "" {
		return title[0].PlainText
	}
	if title[0].Text != nil {
		return title[0].Text.Content
	}
	return ""
}

func extractRunID(page notionapi.Page) string {
	prop, ok := page.Properties[PropRunID]
	if !ok {
		return ""
	}

	var text []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		text = p.RichText
	case notionapi.RichTextProperty:
		text = p.RichText
	}

	if len(text) == 0 {
		return ""
	}
	if text[0].PlainText != "" {
		return text[0].PlainText
	}
	if text[0].Text != nil {
		return text[0].Text.Content
	}
	return ""
}
