package comment

import (
	"errors"
	"strings"
	"testing"

	"github.com/streamforge/comment-service/internal/models"
)

func TestBuildAssignsIdentity(t *testing.T) {
	in := BuildInput{VideoID: "v1", UserID: "u1", Content: "hi"}

	c, err := Build(in, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("expected generated id")
	}
	if c.CreatedAt.IsZero() {
		t.Fatalf("expected timestamp")
	}
	if c.Scope != models.ScopeLive {
		t.Fatalf("expected default scope live, got %q", c.Scope)
	}

	c2, err := Build(in, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.ID == c2.ID {
		t.Fatalf("ids must be unique per build")
	}
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name string
		in   BuildInput
		want error
	}{
		{"missing video", BuildInput{UserID: "u1", Content: "hi"}, ErrMissingVideoID},
		{"missing user", BuildInput{VideoID: "v1", Content: "hi"}, ErrMissingUserID},
		{"empty content", BuildInput{VideoID: "v1", UserID: "u1"}, ErrEmptyContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Build(tc.in, true); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBuildOverlongContent(t *testing.T) {
	long := strings.Repeat("x", MaxContentLength+10)
	in := BuildInput{VideoID: "v1", UserID: "u1", Content: long}

	// HTTP path rejects.
	if _, err := Build(in, false); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}

	// Socket path truncates.
	c, err := Build(in, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len([]rune(c.Content)); got != MaxContentLength {
		t.Fatalf("truncated length = %d, want %d", got, MaxContentLength)
	}
}

func TestBuildTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("界", MaxContentLength+1)
	c, err := Build(BuildInput{VideoID: "v1", UserID: "u1", Content: long}, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	runes := []rune(c.Content)
	if len(runes) != MaxContentLength {
		t.Fatalf("rune length = %d, want %d", len(runes), MaxContentLength)
	}
	for _, r := range runes {
		if r != '界' {
			t.Fatalf("rune mangled by truncation: %q", r)
		}
	}
}

func TestBuildCarriesReplyLinkage(t *testing.T) {
	c, err := Build(BuildInput{
		VideoID: "v1", UserID: "u1", Content: "hi",
		ReplyToID: "c9", ReplyToUserID: "u9",
		Scope: models.ScopeVOD,
	}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.ReplyToID != "c9" || c.ReplyToUserID != "u9" {
		t.Fatalf("reply linkage lost: %+v", c)
	}
	if c.Scope != models.ScopeVOD {
		t.Fatalf("scope = %q, want vod", c.Scope)
	}
}
