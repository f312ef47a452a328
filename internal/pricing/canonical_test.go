package pricing

import (
	"reflect"
	"testing"

	"github.com/pricelens/crawl-engine/pkg/models"
)

func TestCanonicalize_SortsAndDedupes(t *testing.T) {
	in := models.PricingPayload{
		SourceURL: " https://acme.com/pricing ",
		PageTitle: "  Pricing \n Plans ",
		PlanNames: []string{"Pro", "starter", " PRO ", ""},
		PriceMentions: []models.PriceMention{
			{Amount: 49.004, Currency: "usd", Period: models.PeriodMonth},
			{Amount: 19, Currency: "USD", Period: models.PeriodMonth},
			{Amount: 49.0, Currency: "USD", Period: models.PeriodMonth},
			{Amount: 490, Currency: "USD", Period: models.PeriodYear},
			{Amount: 10, Currency: "EUR"},
		},
		CustomPricingHints: []string{"Contact Sales", "contact sales", "book a demo"},
	}

	got := Canonicalize(in)

	if got.SourceURL != "https://acme.com/pricing" {
		t.Errorf("SourceURL = %q", got.SourceURL)
	}
	if got.PageTitle != "Pricing Plans" {
		t.Errorf("PageTitle = %q", got.PageTitle)
	}
	if want := []string{"pro", "starter"}; !reflect.DeepEqual(got.PlanNames, want) {
		t.Errorf("PlanNames = %v, want %v", got.PlanNames, want)
	}
	if want := []string{"book a demo", "contact sales"}; !reflect.DeepEqual(got.CustomPricingHints, want) {
		t.Errorf("CustomPricingHints = %v, want %v", got.CustomPricingHints, want)
	}

	wantMentions := []models.PriceMention{
		{Amount: 10, Currency: "EUR", Period: models.PeriodUnknown},
		{Amount: 19, Currency: "USD", Period: models.PeriodMonth},
		{Amount: 49, Currency: "USD", Period: models.PeriodMonth},
		{Amount: 490, Currency: "USD", Period: models.PeriodYear},
	}
	if !reflect.DeepEqual(got.PriceMentions, wantMentions) {
		t.Errorf("PriceMentions = %v, want %v", got.PriceMentions, wantMentions)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	in := models.PricingPayload{
		PlanNames: []string{"Enterprise", "pro"},
		PriceMentions: []models.PriceMention{
			{Amount: 99.999, Currency: "gbp", Period: models.PeriodYear},
			{Amount: 9.5, Currency: "GBP", Period: models.PeriodMonth},
		},
		CustomPricingHints: []string{"Request a Quote"},
	}
	once := Canonicalize(in)
	twice := Canonicalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Canonicalize not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{19.004: 19.0, 19.006: 19.01, 0.1 + 0.2: 0.3, 49: 49}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}
