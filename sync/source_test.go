package sync

import (
	"testing"
)

func TestSourcePathLookups(t *testing.T) {
	source := ParseSource([]byte(`{
		"event": "Deal Won",
		"properties": {"amount": 4200, "closed": true, "notes": null},
		"user": {"email": "jo@example.org"}
	}`))

	if have, ok := source.StringForPath("event"); !ok || have != "Deal Won" {
		t.Errorf("Expected event 'Deal Won' but have: %q (%v)", have, ok)
	}
	if have, ok := source.StringForPath("user.email"); !ok || have != "jo@example.org" {
		t.Errorf("Expected the nested email but have: %q (%v)", have, ok)
	}
	if have, ok := source.IntForPath("properties.amount"); !ok || have != 4200 {
		t.Errorf("Expected amount 4200 but have: %d (%v)", have, ok)
	}
	if have, ok := source.BoolForPath("properties.closed"); !ok || !have {
		t.Errorf("Expected closed to be true but have: %v (%v)", have, ok)
	}
	if _, ok := source.ValueForPath("properties.notes"); ok {
		t.Error("Expected a null value to report as missing")
	}
	if _, ok := source.ValueForPath("does.not.exist"); ok {
		t.Error("Expected a missing path to report as missing")
	}
}

func TestCombinedContext(t *testing.T) {
	event := UserEvent{Event: "Deal Won", EventID: "e1", Properties: map[string]interface{}{"amount": 4200}}
	combined, err := CombinedContext(event,
		map[string]interface{}{"email": "jo@example.org"},
		map[string]interface{}{"domain": "example.org"})
	if err != nil {
		t.Fatal(err)
	}

	source := ParseSource(combined)
	if have, _ := source.StringForPath("event"); have != "Deal Won" {
		t.Errorf("Expected the event fields at the top level but have: %s", combined)
	}
	if have, _ := source.StringForPath("user.email"); have != "jo@example.org" {
		t.Errorf("Expected the user attributes under 'user' but have: %s", combined)
	}
	if have, _ := source.StringForPath("account.domain"); have != "example.org" {
		t.Errorf("Expected the account attributes under 'account' but have: %s", combined)
	}
}

func TestReferenceContext(t *testing.T) {
	context, err := ReferenceContext(
		map[string]interface{}{"lead/id": "L1"},
		map[string]interface{}{"crm/id": "A1"})
	if err != nil {
		t.Fatal(err)
	}

	source := ParseSource(context)
	if have, _ := source.StringForPath("lead/id"); have != "L1" {
		t.Errorf("Expected the user attributes at the top level but have: %s", context)
	}
	if have, _ := source.StringForPath("account.crm/id"); have != "A1" {
		t.Errorf("Expected the account attributes under 'account' but have: %s", context)
	}
}
