package announce_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/announce"
	"github.com/ElectrobladeIsADev/fitnessguide/exercise"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var at = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func runAnnouncer(t *testing.T, a *announce.Announcer) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Run(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func TestAnnouncer_DeliversInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	done := make(chan struct{})
	gomock.InOrder(
		sink.EXPECT().Announce(gomock.Any(), announce.Announcement{
			Kind: analytics.EventRep, Text: "Rep 10", Exercise: exercise.Squat, At: at,
		}).Return(nil),
		sink.EXPECT().Announce(gomock.Any(), announce.Announcement{
			Kind: analytics.EventSetComplete, Text: "Set 1 complete", Exercise: exercise.Squat, At: at,
		}).Return(nil),
		sink.EXPECT().Announce(gomock.Any(), announce.Announcement{
			Kind: analytics.EventFatigue, Text: "Fatigue detected", Exercise: exercise.Squat, At: at,
		}).DoAndReturn(func(context.Context, announce.Announcement) error {
			close(done)
			return nil
		}),
	)

	a := announce.NewAnnouncer(4, sink)
	a.Notify(analytics.Event{Kind: analytics.EventRep, Count: 10, Exercise: exercise.Squat, Message: "Rep 10", At: at})
	a.Notify(analytics.Event{Kind: analytics.EventSetComplete, Count: 1, Exercise: exercise.Squat, Message: "Set 1 complete", At: at})
	a.Notify(analytics.Event{Kind: analytics.EventFatigue, Exercise: exercise.Squat, Message: "Fatigue detected", At: at})

	stop := runAnnouncer(t, a)
	defer stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("announcements not delivered")
	}
	assert.Zero(t, a.Dropped())
}

func TestAnnouncer_SinkErrorDoesNotStopOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := NewMockSink(ctrl)
	ok := NewMockSink(ctrl)

	done := make(chan struct{})
	failing.EXPECT().Announce(gomock.Any(), gomock.Any()).Return(errors.New("speaker offline"))
	ok.EXPECT().Announce(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a announce.Announcement) error {
		assert.Equal(t, "Switched to pushup", a.Text)
		close(done)
		return nil
	})

	a := announce.NewAnnouncer(1, failing, ok)
	stop := runAnnouncer(t, a)
	defer stop()

	a.Notify(analytics.Event{Kind: analytics.EventExerciseSwitched, Exercise: exercise.Pushup, Message: "Switched to pushup", At: at})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second sink not reached")
	}
}

func TestAnnouncer_DropsWhenFull(t *testing.T) {
	a := announce.NewAnnouncer(2)
	for i := 1; i <= 5; i++ {
		a.Notify(analytics.Event{Kind: analytics.EventRep, Count: i, Message: "Rep", At: at})
	}
	assert.Equal(t, uint64(3), a.Dropped())
}

func TestNewAnnouncer_DefaultQueue(t *testing.T) {
	a := announce.NewAnnouncer(0)
	for i := 0; i < announce.DefaultQueueSize; i++ {
		a.Notify(analytics.Event{Kind: analytics.EventRep, Count: i + 1, At: at})
	}
	assert.Zero(t, a.Dropped())
	a.Notify(analytics.Event{Kind: analytics.EventRep, At: at})
	assert.Equal(t, uint64(1), a.Dropped())
}
