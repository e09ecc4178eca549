package site

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eastviewpta.org/internal/pta"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestEmbeddedCatalog(t *testing.T) {
	c := loadCatalog(t)
	assert.Equal(t, []string{"board-members", "home", "membership"}, c.PageNames())
	assert.Len(t, c.Goals, 2)
	assert.Len(t, c.Items, 2)
	assert.Len(t, c.Opportunities, 3)

	page, err := c.Page("membership")
	require.NoError(t, err)
	var doc struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(page, &doc))
	assert.Equal(t, "Join the East View PTA", doc.Title)

	_, err = c.Page("missing")
	assert.ErrorIs(t, err, pta.ErrNotFound)
}

func TestGoalProgressSerialized(t *testing.T) {
	raw, err := json.Marshal(Goal{ID: "g", TargetCents: 1000, CurrentCents: 650})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"progress":65`)
	assert.Equal(t, 100, Goal{TargetCents: 10, CurrentCents: 50}.Progress())
}

func TestAcknowledgeDonation(t *testing.T) {
	c := loadCatalog(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ack, err := c.AcknowledgeDonation(DonationRequest{AmountCents: 2500, GoalID: "technology-fund"}, now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ack.Reference, "DON-"))
	assert.Equal(t, int64(2500), ack.AmountCents)

	_, err = c.AcknowledgeDonation(DonationRequest{AmountCents: 0}, now)
	assert.ErrorIs(t, err, pta.ErrValidation)
	_, err = c.AcknowledgeDonation(DonationRequest{AmountCents: 5, DonorEmail: "nope"}, now)
	assert.ErrorIs(t, err, pta.ErrValidation)
}

func TestAcknowledgePurchaseTotals(t *testing.T) {
	c := loadCatalog(t)
	ack, err := c.AcknowledgePurchase(PurchaseRequest{Items: []PurchaseLine{
		{ItemID: "pta-tshirt", Quantity: 2},
		{ItemID: "spirit-mug", Quantity: 1},
	}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4200), ack.AmountCents)

	_, err = c.AcknowledgePurchase(PurchaseRequest{Items: []PurchaseLine{{ItemID: "hoodie", Quantity: 1}}}, time.Now())
	assert.ErrorIs(t, err, pta.ErrValidation)
	_, err = c.AcknowledgePurchase(PurchaseRequest{}, time.Now())
	assert.ErrorIs(t, err, pta.ErrValidation)
}

func TestAcknowledgeVolunteer(t *testing.T) {
	c := loadCatalog(t)
	ack, err := c.AcknowledgeVolunteer(VolunteerSignup{Name: "Pat", Email: "pat@example.org", OpportunityID: "fundraising"}, time.Now())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ack.Reference, "VOL-"))

	_, err = c.AcknowledgeVolunteer(VolunteerSignup{Name: "Pat"}, time.Now())
	assert.ErrorIs(t, err, pta.ErrValidation)
}
