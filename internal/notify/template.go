package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// DefaultBrand is shown in the invitation body and signature.
const DefaultBrand = "Accredian"

// Rendered is a ready-to-send invitation email.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type invitationView struct {
	Brand        string
	ReferrerName string
	RefereeName  string
	AcceptURL    string
	RejectURL    string
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #f8f9fa; padding: 20px; text-align: center; border-radius: 8px; }
    .content { padding: 20px 0; }
    .benefit-item { margin: 10px 0; }
    .button-container { text-align: center; margin: 30px 0; }
    .button { display: inline-block; padding: 12px 24px; margin: 0 10px; text-decoration: none; border-radius: 5px; font-weight: bold; color: white !important; }
    .accept { background-color: #28a745; border: 2px solid #28a745; }
    .reject { background-color: #dc3545; border: 2px solid #dc3545; }
    .footer { text-align: center; margin-top: 30px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>&#127881; {{.ReferrerName}} Invited You!</h1>
      <p>Don't Miss This Exclusive Opportunity!</p>
    </div>
    <div class="content">
      <p>Hey {{.RefereeName}},</p>
      <p><strong>{{.ReferrerName}}</strong> thought you'd be a perfect fit and referred you to {{.Brand}}, where you can unlock exclusive rewards and benefits!</p>
      <div class="benefits">
        <div class="benefit-item">&#9989; Access to premium features and exclusive content</div>
        <div class="benefit-item">&#9989; Special member-only discounts and offers</div>
        <div class="benefit-item">&#9989; Early access to new features and updates</div>
      </div>
      <p>{{.ReferrerName}} might even get a bonus when you join. It's a win-win!</p>
      <div class="button-container">
        <a href="{{.AcceptURL}}" class="button accept">Accept Invitation</a>
        <a href="{{.RejectURL}}" class="button reject">Decline</a>
      </div>
    </div>
    <div class="footer">
      <p>Cheers,<br>{{.Brand}} Team</p>
    </div>
  </div>
</body>
</html>
`))

// Renderer turns an Invitation into an email.
type Renderer struct {
	brand string
	links *LinkBuilder
}

// NewRenderer creates a Renderer. An empty brand falls back to DefaultBrand.
func NewRenderer(brand string, links *LinkBuilder) *Renderer {
	if brand == "" {
		brand = DefaultBrand
	}
	return &Renderer{brand: brand, links: links}
}

// Render builds subject, HTML body and plain-text fallback for inv.
func (r *Renderer) Render(inv Invitation) (Rendered, error) {
	view := invitationView{
		Brand:        r.brand,
		ReferrerName: inv.ReferrerName,
		RefereeName:  inv.RefereeName,
		AcceptURL:    r.links.AcceptURL(inv.UserID, inv.RefereeEmail),
		RejectURL:    r.links.RejectURL(inv.UserID, inv.RefereeEmail),
	}

	var buf bytes.Buffer
	if err := invitationTemplate.Execute(&buf, view); err != nil {
		return Rendered{}, fmt.Errorf("render invitation: %w", err)
	}

	text := fmt.Sprintf("Hey %s,\n\n%s invited you to %s.\n\nAccept: %s\nDecline: %s\n\nCheers,\n%s Team\n",
		view.RefereeName, view.ReferrerName, view.Brand, view.AcceptURL, view.RejectURL, view.Brand)

	return Rendered{
		Subject: fmt.Sprintf("\U0001F389 %s Invited You – Don't Miss This Exclusive Opportunity!", inv.ReferrerName),
		HTML:    buf.String(),
		Text:    text,
	}, nil
}
