package template_test

import (
	"errors"
	"testing"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/template"
)

func TestRender_ExactMatchWinsOverFallbacks(t *testing.T) {
	c := template.NewCatalog()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(c.Register(domain.KindBookingConfirmed, "en", "", "", 1, "locale fallback"))
	must(c.Register(domain.KindBookingConfirmed, "en", domain.ChannelChat, "", 1, "channel fallback"))
	must(c.Register(domain.KindBookingConfirmed, "en", domain.ChannelChat, domain.ScopeRecruiter, 2, "exact"))

	r, err := c.Render(domain.KindBookingConfirmed, nil, "en", domain.ChannelChat, domain.ScopeRecruiter)
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "exact" {
		t.Errorf("text = %q, want exact match", r.Text)
	}
	if r.Version != 2 {
		t.Errorf("version = %d, want 2", r.Version)
	}
	if r.Key != "booking_confirmed.en.chat.recruiter" {
		t.Errorf("key = %q", r.Key)
	}
}

func TestRender_DropsScopeThenChannel(t *testing.T) {
	c := template.NewCatalog()
	if err := c.Register(domain.KindReminder24h, "en", "", "", 1, "locale level"); err != nil {
		t.Fatal(err)
	}

	// Candidate scope on SMS, only a bare locale-level body registered.
	r, err := c.Render(domain.KindReminder24h, nil, "en", domain.ChannelSMS, domain.ScopeCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "locale level" {
		t.Errorf("text = %q", r.Text)
	}
}

// TestRender_UnknownLocaleFallsBackToEnglish verifies the second half of
// the chain: the requested locale misses at every level before English is
// tried.
func TestRender_UnknownLocaleFallsBackToEnglish(t *testing.T) {
	c := template.NewCatalog()
	if err := c.Register(domain.KindConfirm2h, "en", "", "", 1, "english body"); err != nil {
		t.Fatal(err)
	}

	r, err := c.Render(domain.KindConfirm2h, nil, "de", domain.ChannelChat, domain.ScopeCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "english body" {
		t.Errorf("text = %q", r.Text)
	}
}

func TestRender_LocalizedBodyPreferred(t *testing.T) {
	c := template.DefaultCatalog()

	r, err := c.Render(domain.KindReminder24h, template.Context{
		"EventName":   "Интервью",
		"StartsLocal": "Ср, 11 Июн 15:00",
	}, "ru", domain.ChannelChat, domain.ScopeCandidate)
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "Напоминание: Интервью завтра в Ср, 11 Июн 15:00." {
		t.Errorf("text = %q", r.Text)
	}
}

func TestRender_MissEverywhereIsTerminal(t *testing.T) {
	c := template.NewCatalog()

	_, err := c.Render(domain.KindConfirm3h, nil, "en", domain.ChannelChat, domain.ScopeCandidate)
	if !errors.Is(err, template.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestRender_ContextValuesInterpolated(t *testing.T) {
	c := template.DefaultCatalog()

	r, err := c.Render(domain.KindBookingConfirmed, template.Context{
		"EventName":   "Intro Day",
		"StartsLocal": "Wed, 11 Jun 15:00",
	}, "en", domain.ChannelChat, domain.ScopeCandidate)
	if err != nil {
		t.Fatal(err)
	}
	want := "Your interview Intro Day is confirmed for Wed, 11 Jun 15:00."
	if r.Text != want {
		t.Errorf("text = %q, want %q", r.Text, want)
	}
}

func TestDefaultCatalog_CoversEveryKind(t *testing.T) {
	c := template.DefaultCatalog()
	kinds := []domain.Kind{
		domain.KindBookingConfirmed,
		domain.KindBookingReleased,
		domain.KindReminder24h,
		domain.KindConfirm6h,
		domain.KindConfirm3h,
		domain.KindConfirm2h,
	}
	for _, k := range kinds {
		if _, err := c.Render(k, template.Context{}, "en", domain.ChannelChat, domain.ScopeCandidate); err != nil {
			t.Errorf("kind %s: %v", k, err)
		}
	}
}
