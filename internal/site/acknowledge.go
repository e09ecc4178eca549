package site

import (
	"net/mail"
	"strings"
	"time"

	"eastviewpta.org/internal/ids"
	"eastviewpta.org/internal/pta"
)

// Nothing here charges money or sends mail; each call validates the form and
// hands back a reference the visitor can quote.

type DonationRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	DonorName     string `json:"donor_name"`
	DonorEmail    string `json:"donor_email"`
	GoalID        string `json:"goal_id"`
	PaymentMethod string `json:"payment_method"`
	Message       string `json:"message"`
}

type PurchaseLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type PurchaseRequest struct {
	Items         []PurchaseLine `json:"items"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	PaymentMethod string         `json:"payment_method"`
}

type VolunteerSignup struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Interests     []string `json:"interests"`
	OpportunityID string   `json:"opportunity_id"`
	Availability  string   `json:"availability"`
	Message       string   `json:"message"`
}

type Acknowledgement struct {
	Reference   string    `json:"reference"`
	Message     string    `json:"message"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

func (c *Catalog) AcknowledgeDonation(req DonationRequest, now time.Time) (Acknowledgement, error) {
	if req.AmountCents <= 0 {
		return Acknowledgement{}, &pta.ValidationError{Message: "amount must be positive"}
	}
	if err := optionalEmail(req.DonorEmail); err != nil {
		return Acknowledgement{}, err
	}
	if req.GoalID != "" && !c.hasGoal(req.GoalID) {
		return Acknowledgement{}, &pta.ValidationError{Message: "unknown fundraising goal"}
	}
	return Acknowledgement{
		Reference:   "DON-" + ids.NewAt(now),
		Message:     "Thank you for your donation!",
		AmountCents: req.AmountCents,
		ReceivedAt:  now.UTC(),
	}, nil
}

func (c *Catalog) AcknowledgePurchase(req PurchaseRequest, now time.Time) (Acknowledgement, error) {
	if len(req.Items) == 0 {
		return Acknowledgement{}, &pta.ValidationError{Message: "at least one item is required"}
	}
	if err := optionalEmail(req.CustomerEmail); err != nil {
		return Acknowledgement{}, err
	}
	var total int64
	for _, line := range req.Items {
		item, ok := c.Item(line.ItemID)
		if !ok {
			return Acknowledgement{}, &pta.ValidationError{Message: "unknown item " + line.ItemID}
		}
		if !item.InStock {
			return Acknowledgement{}, &pta.ValidationError{Message: item.Name + " is out of stock"}
		}
		if line.Quantity < 1 {
			return Acknowledgement{}, &pta.ValidationError{Message: "quantity must be at least 1"}
		}
		total += item.PriceCents * int64(line.Quantity)
	}
	return Acknowledgement{
		Reference:   "ORD-" + ids.NewAt(now),
		Message:     "Purchase processed successfully",
		AmountCents: total,
		ReceivedAt:  now.UTC(),
	}, nil
}

func (c *Catalog) AcknowledgeVolunteer(req VolunteerSignup, now time.Time) (Acknowledgement, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Acknowledgement{}, &pta.ValidationError{Message: "name is required"}
	}
	if strings.TrimSpace(req.Email) == "" {
		return Acknowledgement{}, &pta.ValidationError{Message: "email is required"}
	}
	if err := optionalEmail(req.Email); err != nil {
		return Acknowledgement{}, err
	}
	if req.OpportunityID != "" {
		if _, ok := c.Opportunity(req.OpportunityID); !ok {
			return Acknowledgement{}, &pta.ValidationError{Message: "unknown volunteer opportunity"}
		}
	}
	return Acknowledgement{
		Reference:  "VOL-" + ids.NewAt(now),
		Message:    "Thank you for volunteering! We will contact you soon.",
		ReceivedAt: now.UTC(),
	}, nil
}

func (c *Catalog) hasGoal(id string) bool {
	for _, g := range c.Goals {
		if g.ID == id {
			return true
		}
	}
	return false
}

func optionalEmail(s string) error {
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return &pta.ValidationError{Message: "please provide a valid email"}
	}
	return nil
}
