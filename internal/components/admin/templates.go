package admin

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// Fragments only: the surrounding page and htmx wiring live outside this
// service, these templates render into an htmx swap target.

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<div class="invoice" id="invoice-{{.ID}}">
  <h2>Invoice {{.ID}} <span class="version">v{{.Version}}</span> <span class="status">{{.Status}}</span></h2>
  <p class="period">{{.DateFrom.Format "2006-01-02"}} to {{.DateTo.Format "2006-01-02"}} for client {{.ClientID}}</p>
  <table class="items">
    <thead><tr><th>Description</th><th>Qty</th><th>Unit</th><th>Amount</th></tr></thead>
    <tbody>
    {{range .Items}}<tr id="item-{{.ID}}">
      <td>{{.Description}}</td>
      <td>{{.Quantity}}</td>
      <td>{{.UnitPrice}}</td>
      <td>{{.Amount}}</td>
    </tr>
    {{else}}<tr><td colspan="4" class="empty">No line items</td></tr>
    {{end}}</tbody>
  </table>
  <dl class="totals">
    <dt>Subtotal</dt><dd>{{.Subtotal}} {{.Currency}}</dd>
    <dt>Tax</dt><dd>{{.Tax}} {{.Currency}}</dd>
    <dt>Total</dt><dd>{{.TotalAmount}} {{.Currency}}</dd>
  </dl>
</div>
`))

var previewTmpl = template.Must(template.New("preview").Parse(`<div class="invoice-preview">
  <div class="invoice-summary">
    <h2>Invoice {{.Invoice.ID}} <span class="version">v{{.Invoice.Version}}</span></h2>
    <p>Total: {{.Invoice.TotalAmount}} {{.Invoice.Currency}}</p>
  </div>
  <div class="pending-suggestions">
    <h3>Pending suggestions</h3>
    {{if .Suggestions}}<ul>
    {{range .Suggestions}}<li id="suggestion-{{.ID}}">
      <span class="kind">{{.Kind}}</span>
      {{if .Note}}<span class="note">{{.Note}}</span>{{end}}
      <button hx-post="pending/{{.ID}}/approve" hx-target="#suggestion-{{.ID}}">Approve</button>
      <button hx-post="pending/{{.ID}}/reject" hx-target="#suggestion-{{.ID}}">Reject</button>
    </li>
    {{end}}</ul>
    {{else}}<p class="empty">No pending suggestions</p>
    {{end}}
  </div>
</div>
`))

var diffTmpl = template.Must(template.New("diff").Parse(`<div class="invoice-diff">
  <h3>Changes v{{.FromVersion}} to v{{.ToVersion}}</h3>
  {{if .Empty}}<p class="empty">No differences</p>
  {{else}}<table class="diff">
    <thead><tr><th></th><th>Description</th><th>Detail</th></tr></thead>
    <tbody>
    {{range .Added}}<tr class="added"><td>+</td><td>{{.Description}}</td><td>{{.Quantity}} × {{.UnitPrice}} = {{.Amount}}</td></tr>
    {{end}}{{range .Removed}}<tr class="removed"><td>−</td><td>{{.Description}}</td><td>{{.Amount}}</td></tr>
    {{end}}{{range .Changed}}<tr class="changed"><td>~</td><td>{{.Item.Description}}</td><td>{{range .Changes}}<span class="field-change">{{.Field}}: {{.From}} → {{.To}}</span> {{end}}</td></tr>
    {{end}}</tbody>
  </table>
  <p class="total-delta">Total change: {{.TotalDelta}}</p>
  {{end}}
</div>
`))

func parseVersionParam(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("version is required")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "v"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad version %q", s)
	}
	return n, nil
}
