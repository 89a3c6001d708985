// Package reply renders every message the assistant sends.
package reply

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/user/tirtabot/internal/format"
	"github.com/user/tirtabot/internal/types"
)

// HistoryLimit is the number of settled periods shown in a payment history.
const HistoryLimit = 5

// Options configures the organization-specific parts of the replies.
type Options struct {
	OrgName  string
	Office   types.Place
	Location *time.Location
}

// Renderer renders the named reply templates with strict missing-key
// semantics.
type Renderer struct {
	tmpl *template.Template
	opts Options
}

var funcs = template.FuncMap{
	"rupiah": format.Rupiah,
	"month":  format.Month,
	"date": func(t time.Time) string {
		return strconv.Itoa(t.Day()) + " " + format.Month(int(t.Month())) + " " + strconv.Itoa(t.Year())
	},
}

var sources = map[string]string{
	"greeting":         greetingTemplate,
	"context_prompt":   contextPromptTemplate,
	"keyword":          keywordNotFoundTemplate,
	"customer":         customerTemplate,
	"bills":            billsTemplate,
	"history":          historyTemplate,
	"customer_missing": customerNotFoundTemplate,
	"bills_missing":    billNotFoundTemplate,
	"history_missing":  historyNotFoundTemplate,
}

// New parses all reply templates.
func New(opts Options) (*Renderer, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	root := template.New("reply").Option("missingkey=error").Funcs(funcs)
	if _, err := root.Parse(menuTemplate); err != nil {
		return nil, fmt.Errorf("reply: parse menu: %w", err)
	}
	for name, src := range sources {
		if _, err := root.New(name).Parse(src); err != nil {
			return nil, fmt.Errorf("reply: parse %s: %w", name, err)
		}
	}
	return &Renderer{tmpl: root, opts: opts}, nil
}

func (r *Renderer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("reply: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

// Salutation returns the Indonesian part of day used in the greeting.
func (r *Renderer) Salutation(now time.Time) string {
	local := now.In(r.opts.Location)
	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= 4*60 && minutes < 10*60:
		return "pagi"
	case minutes >= 10*60 && minutes < 16*60:
		return "siang"
	case minutes >= 16*60 && minutes < 19*60:
		return "sore"
	default:
		return "malam"
	}
}

func (r *Renderer) Greeting(now time.Time) (string, error) {
	return r.render("greeting", struct {
		Salutation string
		OrgName    string
		Menu       []types.MenuOption
	}{r.Salutation(now), r.opts.OrgName, types.MenuOptions})
}

func (r *Renderer) ContextPrompt() (string, error) {
	return r.render("context_prompt", struct{ Menu []types.MenuOption }{types.MenuOptions})
}

func (r *Renderer) KeywordNotFound() (string, error) {
	return r.render("keyword", struct{ Menu []types.MenuOption }{types.MenuOptions})
}

func (r *Renderer) Customer(c *types.Customer) (string, error) {
	return r.render("customer", c)
}

// Bills renders the open bills of a customer followed by their count and
// grand total.
func (r *Renderer) Bills(number string, bills []types.Bill) (string, error) {
	var total int64
	for _, b := range bills {
		total += b.Total
	}
	return r.render("bills", struct {
		Number string
		Bills  []types.Bill
		Count  int
		Total  int64
	}{number, bills, len(bills), total})
}

func (r *Renderer) History(number string, payments []types.Payment) (string, error) {
	return r.render("history", struct {
		Number   string
		Limit    int
		Payments []types.Payment
	}{number, HistoryLimit, payments})
}

func (r *Renderer) CustomerNotFound(number string) (string, error) {
	return r.render("customer_missing", number)
}

func (r *Renderer) BillNotFound(number string) (string, error) {
	return r.render("bills_missing", number)
}

func (r *Renderer) HistoryNotFound(number string) (string, error) {
	return r.render("history_missing", struct {
		Number string
		Limit  int
	}{number, HistoryLimit})
}

func (r *Renderer) AskSubject() string { return askSubjectText }

func (r *Renderer) Payment() string { return underDevelopmentText }

func (r *Renderer) Registration() string { return underDevelopmentText }

func (r *Renderer) Complaint() string { return underDevelopmentText }

func (r *Renderer) ComplaintStatus() string { return underDevelopmentText }

func (r *Renderer) OutageInfo() string { return outageInfoText }

func (r *Renderer) SystemError() string { return systemErrorText }

// OfficeLocation returns the service office as a structured place.
func (r *Renderer) OfficeLocation() types.Place { return r.opts.Office }
