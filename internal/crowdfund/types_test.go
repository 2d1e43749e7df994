package crowdfund

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestProjectIDRoundTrip(t *testing.T) {
	id := HashProjectID([]byte("40"))
	s := id.String()
	if !strings.HasPrefix(s, "0x") || len(s) != 2+ProjectIDSize*2 {
		t.Fatalf("unexpected text form %q", s)
	}

	parsed, err := ParseProjectID(s)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != id {
		t.Fatal("parsed id differs from original")
	}

	bare, err := ParseProjectID(strings.TrimPrefix(s, "0x"))
	if err != nil || bare != id {
		t.Fatalf("parse without prefix failed: %v", err)
	}
}

func TestParseProjectIDRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "0x", "0x1234", strings.Repeat("zz", ProjectIDSize)} {
		if _, err := ParseProjectID(in); !errors.Is(err, ErrInvalidProjectID) {
			t.Fatalf("ParseProjectID(%q): expected ErrInvalidProjectID, got %v", in, err)
		}
	}
}

func TestHashProjectIDIsDeterministic(t *testing.T) {
	if HashProjectID([]byte("a")) != HashProjectID([]byte("a")) {
		t.Fatal("same content must hash to the same id")
	}
	if HashProjectID([]byte("a")) == HashProjectID([]byte("b")) {
		t.Fatal("different content must hash to different ids")
	}
}

func TestContributorSetRejectsDuplicates(t *testing.T) {
	var s ContributorSet
	if !s.Add("bob") || !s.Add("dave") {
		t.Fatal("first insert must succeed")
	}
	if s.Add("bob") {
		t.Fatal("duplicate insert must be rejected")
	}
	if s.Len() != 2 || !s.Contains("dave") || s.Contains("alice") {
		t.Fatalf("unexpected set contents %v", s.List())
	}

	clone := s.Clone()
	clone.Add("alice")
	if s.Contains("alice") {
		t.Fatal("clone must not share storage")
	}
}

func TestProjectJSON(t *testing.T) {
	p := NewProject(ProjectSpec{Owner: "alice", PotAccount: "charlie", TargetFund: 100, MinFund: 10})
	p.Contributors.Add("bob")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"contributors":["bob"]`) || !strings.Contains(string(data), `"status":true`) {
		t.Fatalf("unexpected json %s", data)
	}

	var decoded Project
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !decoded.Contributors.Contains("bob") || !decoded.IsActive() {
		t.Fatalf("decoded project lost fields: %+v", decoded)
	}
}
