package boardsync_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dt-pm-tools/board-sync/internal/boardsync"
	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/dt-pm-tools/board-sync/internal/logging"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/dt-pm-tools/board-sync/internal/monday/mondaytest"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func sourceItem(id, name string) map[string]any {
	return map[string]any{"items": []any{map[string]any{
		"id":    id,
		"name":  name,
		"board": map[string]any{"id": "10"},
		"column_values": []any{
			map[string]any{"id": "rank", "text": "A"},
			map[string]any{"id": "sla", "text": "5"},
			map[string]any{"id": "receita", "text": "1000"},
			map[string]any{"id": "other", "text": "ignored"},
		},
	}}}
}

func searchResult(ids ...string) map[string]any {
	items := make([]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"id": id, "name": "ACME"})
	}
	return map[string]any{"boards": []any{map[string]any{"items_page": map[string]any{"items": items}}}}
}

func newSyncer(srv *mondaytest.Server, mutate func(*config.Config)) *boardsync.Syncer {
	cfg := srv.Config()
	if mutate != nil {
		mutate(&cfg)
	}
	return boardsync.NewSyncer(monday.NewClient(cfg), cfg, logging.Discard())
}

func TestSyncCreatesWhenTargetMissing(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, sourceItem("1", "ACME"))
	srv.OnData(monday.OpSearchItems, searchResult())
	srv.OnData(monday.OpCreateItem, map[string]any{"create_item": map[string]any{"id": "555"}})

	res, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Action).To(Equal(boardsync.ActionCreated))
	g.Expect(res.TargetItemID).To(Equal("555"))
	g.Expect(res.Fields).To(Equal(boardsync.Fields{Rank: "A", SLA: "5", Revenue: "1000"}))

	search := srv.CallsTo(monday.OpSearchItems)
	g.Expect(search).To(HaveLen(1))
	g.Expect(search[0].Var("column")).To(Equal("name"))
	g.Expect(search[0].Variables["value"]).To(Equal([]any{"ACME"}))
	g.Expect(search[0].Variables["board"]).To(Equal([]any{"100"}))

	g.Expect(srv.CallsTo(monday.OpUpdateItem)).To(BeEmpty())
	create := srv.CallsTo(monday.OpCreateItem)
	g.Expect(create).To(HaveLen(1))
	g.Expect(create[0].Var("name")).To(Equal("ACME"))
	g.Expect(create[0].Var("board")).To(Equal("100"))
	g.Expect(create[0].ColumnValues(t)).To(Equal(map[string]any{
		"rank_destino":    "A",
		"sla_destino":     "5",
		"receita_destino": "1000",
	}))
}

func TestSyncUpdatesFirstMatch(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, sourceItem("1", "ACME"))
	srv.OnData(monday.OpSearchItems, searchResult("999"))
	srv.OnData(monday.OpUpdateItem, map[string]any{"change_multiple_column_values": map[string]any{"id": "999"}})

	res, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Action).To(Equal(boardsync.ActionUpdated))
	g.Expect(res.TargetItemID).To(Equal("999"))

	g.Expect(srv.CallsTo(monday.OpCreateItem)).To(BeEmpty())
	update := srv.CallsTo(monday.OpUpdateItem)
	g.Expect(update).To(HaveLen(1))
	g.Expect(update[0].Var("item")).To(Equal("999"))
	g.Expect(update[0].Var("board")).To(Equal("100"))
	g.Expect(update[0].ColumnValues(t)).To(HaveKeyWithValue("rank_destino", "A"))
}

func TestSyncMissingColumnsBecomeEmpty(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, map[string]any{"items": []any{map[string]any{
		"id": "1", "name": "ACME",
		"column_values": []any{map[string]any{"id": "rank", "text": "B"}},
	}}})
	srv.OnData(monday.OpSearchItems, searchResult("999"))
	srv.OnData(monday.OpUpdateItem, map[string]any{"change_multiple_column_values": map[string]any{"id": "999"}})

	_, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(srv.CallsTo(monday.OpUpdateItem)[0].ColumnValues(t)).To(Equal(map[string]any{
		"rank_destino":    "B",
		"sla_destino":     "",
		"receita_destino": "",
	}))
}

func TestSyncMultipleMatchesPolicy(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, sourceItem("1", "ACME"))
	srv.OnData(monday.OpSearchItems, searchResult("7", "8"))
	srv.OnData(monday.OpUpdateItem, map[string]any{"change_multiple_column_values": map[string]any{"id": "7"}})

	res, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.TargetItemID).To(Equal("7"))
	g.Expect(res.Matches).To(Equal(2))

	strict := newSyncer(srv, func(c *config.Config) { c.Target.OnMultipleMatches = config.MatchError })
	_, err = strict.SyncItem(context.Background(), "1", false)
	g.Expect(errors.Cause(err)).To(Equal(boardsync.ErrAmbiguousTarget))
	g.Expect(srv.CallsTo(monday.OpUpdateItem)).To(HaveLen(1))
}

func TestSyncExternalIDMode(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, sourceItem("4242", "ACME"))
	srv.OnData(monday.OpSearchItems, searchResult())
	srv.OnData(monday.OpCreateItem, map[string]any{"create_item": map[string]any{"id": "1"}})

	s := newSyncer(srv, func(c *config.Config) { c.Target.ExternalIDColumn = "source_id" })
	_, err := s.SyncItem(context.Background(), "4242", false)
	g.Expect(err).NotTo(HaveOccurred())

	search := srv.CallsTo(monday.OpSearchItems)[0]
	g.Expect(search.Var("column")).To(Equal("source_id"))
	g.Expect(search.Variables["value"]).To(Equal([]any{"4242"}))
	g.Expect(srv.CallsTo(monday.OpCreateItem)[0].ColumnValues(t)).To(HaveKeyWithValue("source_id", "4242"))
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, sourceItem("1", "ACME"))
	srv.OnData(monday.OpSearchItems, searchResult())

	res, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Action).To(Equal(boardsync.ActionCreated))
	g.Expect(res.DryRun).To(BeTrue())
	g.Expect(srv.Calls()).To(HaveLen(2))
}

func TestSyncStopsOnReadFailure(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.On(monday.OpGetItem, func(mondaytest.Call) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error_message": "down"}
	})

	_, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", false)
	g.Expect(err).To(MatchError(ContainSubstring("API returned 500")))
	g.Expect(srv.Calls()).To(HaveLen(1))
}

func TestSyncRejectsUnnamedItem(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)
	srv.OnData(monday.OpGetItem, sourceItem("1", "  "))

	_, err := newSyncer(srv, nil).SyncItem(context.Background(), "1", false)
	g.Expect(err).To(MatchError(ContainSubstring("has no name")))
	g.Expect(srv.Calls()).To(HaveLen(1))
}

func TestSyncMonitors(t *testing.T) {
	g := NewWithT(t)
	s := newSyncer(mondaytest.NewServer(t), nil)
	g.Expect(s.Monitors("rank")).To(BeTrue())
	g.Expect(s.Monitors("receita")).To(BeTrue())
	g.Expect(s.Monitors("status")).To(BeFalse())
	g.Expect(s.Monitors("")).To(BeFalse())
}

func TestConcurrentSyncsCreateOnce(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)

	var mu sync.Mutex
	created := false
	srv.OnData(monday.OpGetItem, sourceItem("1", "ACME"))
	srv.On(monday.OpSearchItems, func(mondaytest.Call) (int, any) {
		mu.Lock()
		defer mu.Unlock()
		if created {
			return http.StatusOK, map[string]any{"data": searchResult("555")}
		}
		return http.StatusOK, map[string]any{"data": searchResult()}
	})
	srv.On(monday.OpCreateItem, func(mondaytest.Call) (int, any) {
		mu.Lock()
		defer mu.Unlock()
		created = true
		return http.StatusOK, map[string]any{"data": map[string]any{"create_item": map[string]any{"id": "555"}}}
	})
	srv.OnData(monday.OpUpdateItem, map[string]any{"change_multiple_column_values": map[string]any{"id": "555"}})

	s := newSyncer(srv, nil)
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SyncItem(context.Background(), "1", false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		g.Expect(err).NotTo(HaveOccurred())
	}

	g.Expect(srv.CallsTo(monday.OpCreateItem)).To(HaveLen(1))
	g.Expect(srv.CallsTo(monday.OpUpdateItem)).To(HaveLen(4))
}

func TestSyncGivesUpWaitingWhenCancelled(t *testing.T) {
	g := NewWithT(t)
	srv := mondaytest.NewServer(t)

	searching := make(chan struct{})
	release := make(chan struct{})
	var once, releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	srv.OnData(monday.OpGetItem, sourceItem("1", "ACME"))
	srv.On(monday.OpSearchItems, func(mondaytest.Call) (int, any) {
		once.Do(func() { close(searching) })
		<-release
		return http.StatusOK, map[string]any{"data": searchResult("555")}
	})
	srv.OnData(monday.OpUpdateItem, map[string]any{"change_multiple_column_values": map[string]any{"id": "555"}})

	s := newSyncer(srv, nil)
	first := make(chan error, 1)
	go func() {
		_, err := s.SyncItem(context.Background(), "1", false)
		first <- err
	}()
	g.Eventually(searching).Should(BeClosed())

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := s.SyncItem(ctx, "1", false)
		second <- err
	}()
	g.Consistently(second, 50*time.Millisecond).ShouldNot(Receive())
	cancel()

	var err error
	g.Eventually(second).Should(Receive(&err))
	g.Expect(errors.Is(err, context.Canceled)).To(BeTrue())

	unblock()
	g.Eventually(first).Should(Receive(BeNil()))
	g.Expect(srv.CallsTo(monday.OpSearchItems)).To(HaveLen(1))
}
