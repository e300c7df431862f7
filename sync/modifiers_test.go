package sync

import (
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestCountryNameModifier(t *testing.T) {
	result := gjson.Get(`{"country":"DE"}`, "country|@countryName")
	if result.String() != "Germany" {
		t.Errorf("Expected 'Germany' but have: %q", result.String())
	}
}

func TestCountryNameModifier_Unknown(t *testing.T) {
	result := gjson.Get(`{"country":"Atlantis"}`, "country|@countryName")
	if result.Exists() {
		t.Errorf("Expected no value for an unknown country but have: %q", result.String())
	}
}

func TestPhoneModifier_StripsKnownPrefix(t *testing.T) {
	result := gjson.Get(`{"phone":"+61412345678"}`, "phone|@phone:61")
	if result.String() != "+61412345678" {
		t.Errorf("Expected normalized number but have: %q", result.String())
	}
}

func TestToLowerModifier(t *testing.T) {
	result := gjson.Get(`{"email":"Jo@Example.ORG"}`, "email|@toLower")
	if result.String() != "jo@example.org" {
		t.Errorf("Expected lowercased email but have: %q", result.String())
	}
}

func TestToUpperModifier(t *testing.T) {
	result := gjson.Get(`{"code":"au"}`, "code|@toUpper")
	if result.String() != "AU" {
		t.Errorf("Expected uppercased code but have: %q", result.String())
	}
}

func TestNowModifier(t *testing.T) {
	result := gjson.Get(`{}`, "@now")
	if _, err := time.Parse(time.RFC3339, result.String()); err != nil {
		t.Errorf("Expected an RFC3339 timestamp but have: %q", result.String())
	}
}
