package telegram

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/omnirelay/omni/internal/channel"
)

// mediaGroupBuffer collects the messages of a Telegram album. Telegram
// delivers each album item as its own message sharing a media_group_id; the
// buffer waits until no new item arrived for the settle window and then emits
// one media_group event.
type mediaGroupBuffer struct {
	settle time.Duration
	emit   func(channel.InboundEvent)
	now    func() time.Time

	mu      sync.Mutex
	groups  map[string]*pendingGroup
	stopped bool
}

type pendingGroup struct {
	events   []channel.InboundEvent
	deadline time.Time
}

func newMediaGroupBuffer(settle time.Duration, emit func(channel.InboundEvent)) *mediaGroupBuffer {
	return &mediaGroupBuffer{
		settle: settle,
		emit:   emit,
		now:    time.Now,
		groups: make(map[string]*pendingGroup),
	}
}

func groupKey(event channel.InboundEvent) string {
	return event.ChatID() + ":" + event.MediaGroupID
}

func (b *mediaGroupBuffer) add(event channel.InboundEvent) {
	key := groupKey(event)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	deadline := b.now().Add(b.settle)
	if group, ok := b.groups[key]; ok {
		group.events = append(group.events, event)
		group.deadline = deadline
		return
	}
	group := &pendingGroup{events: []channel.InboundEvent{event}, deadline: deadline}
	b.groups[key] = group
	time.AfterFunc(b.settle, func() { b.fire(key, group) })
}

func (b *mediaGroupBuffer) fire(key string, group *pendingGroup) {
	b.mu.Lock()
	if b.stopped || b.groups[key] != group {
		b.mu.Unlock()
		return
	}
	if remaining := group.deadline.Sub(b.now()); remaining > 0 {
		b.mu.Unlock()
		time.AfterFunc(remaining, func() { b.fire(key, group) })
		return
	}
	delete(b.groups, key)
	events := group.events
	b.mu.Unlock()
	b.emit(mergeMediaGroup(events))
}

// stop drops every pending album.
func (b *mediaGroupBuffer) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.groups = make(map[string]*pendingGroup)
}

func (b *mediaGroupBuffer) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}

// mergeMediaGroup orders album items by message id and removes duplicate
// files, keeping the largest variant.
func mergeMediaGroup(events []channel.InboundEvent) channel.InboundEvent {
	sorted := append([]channel.InboundEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return messageIDValue(sorted[i].MessageID) < messageIDValue(sorted[j].MessageID)
	})
	merged := sorted[0]
	merged.Kind = channel.EventMediaGroup
	merged.Attachments = nil

	seen := make(map[string]int)
	for _, event := range sorted {
		for _, att := range event.Attachments {
			key := strings.TrimSpace(att.UniqueKey)
			if key == "" {
				merged.Attachments = append(merged.Attachments, att)
				continue
			}
			if idx, ok := seen[key]; ok {
				if att.Size > merged.Attachments[idx].Size {
					if att.Caption == "" {
						att.Caption = merged.Attachments[idx].Caption
					}
					merged.Attachments[idx] = att
				}
				continue
			}
			seen[key] = len(merged.Attachments)
			merged.Attachments = append(merged.Attachments, att)
		}
	}
	if merged.Text == "" {
		merged.Text = merged.Caption()
	}
	return merged
}

func messageIDValue(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return value
}
