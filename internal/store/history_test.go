package store

import (
	"fmt"
	"testing"

	"github.com/smartcs/smartcs-backend/internal"
)

const testPrompt = "你是测试助手"

func TestTranscriptCreatedLazilyWithSystemMessage(t *testing.T) {
	h := New(testPrompt, 10)

	msgs := h.Transcript("s1")
	if len(msgs) != 1 {
		t.Fatalf("expected seeded transcript of length 1, got %d", len(msgs))
	}
	if msgs[0].Role != internal.RoleSystem || msgs[0].Content != testPrompt {
		t.Fatalf("transcript not seeded with system prompt: %+v", msgs[0])
	}
}

func TestPeekDoesNotCreate(t *testing.T) {
	h := New(testPrompt, 10)

	if _, ok := h.Peek("never-seen"); ok {
		t.Fatal("peek must not create a transcript")
	}
	if got := len(h.Sessions()); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}

func TestTranscriptReturnsCopy(t *testing.T) {
	h := New(testPrompt, 10)

	cp := h.Transcript("s1")
	cp[0].Content = "mutated"

	if fresh := h.Transcript("s1"); fresh[0].Content != testPrompt {
		t.Fatal("caller mutation leaked into the store")
	}
}

func appendRounds(h *History, sessionID string, n int) {
	for i := 1; i <= n; i++ {
		h.AppendRound(sessionID,
			internal.Message{Role: internal.RoleUser, Content: fmt.Sprintf("问题%d", i)},
			internal.Message{Role: internal.RoleAssistant, Content: fmt.Sprintf("回答%d", i)},
		)
	}
}

func TestPruneEvictsOldestPairWhole(t *testing.T) {
	h := New(testPrompt, 10)
	appendRounds(h, "s1", 11)

	msgs := h.Transcript("s1")
	if len(msgs) != 21 {
		t.Fatalf("expected transcript to stabilize at 21 messages, got %d", len(msgs))
	}
	if msgs[0].Role != internal.RoleSystem {
		t.Fatal("first message must stay the system message")
	}
	if msgs[1].Role != internal.RoleUser || msgs[1].Content != "问题2" {
		t.Fatalf("oldest pair not evicted whole, second message is %+v", msgs[1])
	}
	if last := msgs[len(msgs)-1]; last.Content != "回答11" {
		t.Fatalf("newest round missing, last message is %+v", last)
	}
}

func TestPruneNeverLeavesLeadingAssistant(t *testing.T) {
	for rounds := 1; rounds <= 30; rounds++ {
		h := New(testPrompt, 10)
		appendRounds(h, "s1", rounds)

		msgs := h.Transcript("s1")
		if len(msgs) > 21 {
			t.Fatalf("rounds=%d: transcript exceeds bound: %d", rounds, len(msgs))
		}
		if len(msgs) > 1 && msgs[1].Role == internal.RoleAssistant {
			t.Fatalf("rounds=%d: transcript opens with dangling assistant turn", rounds)
		}
	}
}

func TestPruneDropsOrphanAssistantAtCut(t *testing.T) {
	// Direct prune check: an odd-shaped history whose cut lands on an
	// assistant message must drop that orphan.
	msgs := []internal.Message{{Role: internal.RoleSystem, Content: testPrompt}}
	for i := 0; i < 11; i++ {
		msgs = append(msgs,
			internal.Message{Role: internal.RoleAssistant, Content: "孤儿"},
			internal.Message{Role: internal.RoleUser, Content: "问"},
		)
	}

	pruned := prune(msgs, 10)
	if len(pruned) > 21 {
		t.Fatalf("pruned transcript too long: %d", len(pruned))
	}
	if pruned[1].Role == internal.RoleAssistant {
		t.Fatal("orphan assistant survived the cut")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	h := New(testPrompt, 10)
	h.Transcript("s1")

	if !h.Clear("s1") {
		t.Fatal("expected first clear to report deletion")
	}
	if h.Clear("s1") {
		t.Fatal("expected second clear to report nothing deleted")
	}
}

func TestSessionsEnumeration(t *testing.T) {
	h := New(testPrompt, 10)
	appendRounds(h, "a", 2)
	appendRounds(h, "b", 1)

	infos := h.Sessions()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
	counts := map[string]int{}
	for _, info := range infos {
		counts[info.SessionID] = info.MessageCount
	}
	if counts["a"] != 5 || counts["b"] != 3 {
		t.Fatalf("unexpected message counts: %v", counts)
	}
}
