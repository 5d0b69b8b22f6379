package voice

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/voicewarden/internal/logging"
)

// AudioStream is a live per-speaker feed of transport-encoded frames.
// Frames stop arriving after Close; Done is closed when the stream ends
// (explicit close or the speaker leaving the session).
type AudioStream interface {
	Frames() <-chan OpusFrame
	Done() <-chan struct{}
	Close() error
}

// AudioSource hands out per-speaker audio subscriptions. Subscribe is
// idempotent: a second call for a pair with a live subscription returns the
// existing stream.
type AudioSource interface {
	Subscribe(sessionID, speakerID string) (AudioStream, error)
}

// SpeakerEvents receives session-level speaker activity from the transport.
type SpeakerEvents interface {
	SpeakerStarted(sessionID, speakerID string)
	SpeakerLeft(sessionID, speakerID string)
}

type speakerStream struct {
	frames    chan OpusFrame
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (st *speakerStream) Frames() <-chan OpusFrame { return st.frames }
func (st *speakerStream) Done() <-chan struct{}    { return st.done }

func (st *speakerStream) Close() error {
	st.closeOnce.Do(func() {
		close(st.done)
		if st.onClose != nil {
			st.onClose()
		}
	})
	return nil
}

// DiscordSource adapts a discordgo voice connection into per-speaker
// AudioStreams. Inbound RTP packets carry only an SSRC; the SSRC -> user
// mapping is learned from speaking updates on the voice websocket.
type DiscordSource struct {
	sessionID string
	queueSize int
	events    SpeakerEvents

	mu       sync.Mutex
	ssrcMap  map[uint32]string
	subs     map[string]*speakerStream // keyed by sessionID/speakerID
	dropped  map[uint32]int64
	stopPump chan struct{}
	pumpWG   sync.WaitGroup
}

// NewDiscordSource creates a source bound to one voice session (guild).
func NewDiscordSource(sessionID string, queueSize int, events SpeakerEvents) *DiscordSource {
	return &DiscordSource{
		sessionID: sessionID,
		queueSize: queueSize,
		events:    events,
		ssrcMap:   make(map[uint32]string),
		subs:      make(map[string]*speakerStream),
		dropped:   make(map[uint32]int64),
		stopPump:  make(chan struct{}),
	}
}

func subKey(sessionID, speakerID string) string { return sessionID + "/" + speakerID }

// SetEvents installs the speaker event handler. Must be called before
// Attach; it breaks the construction cycle between source and scheduler.
func (d *DiscordSource) SetEvents(events SpeakerEvents) { d.events = events }

// Attach starts routing opus packets from the voice connection to the
// per-speaker subscriptions.
func (d *DiscordSource) Attach(vc *discordgo.VoiceConnection) {
	d.pumpWG.Add(1)
	go func() {
		defer d.pumpWG.Done()
		for {
			select {
			case <-d.stopPump:
				return
			case pkt, ok := <-vc.OpusRecv:
				if !ok {
					return
				}
				d.route(pkt.SSRC, pkt.Opus)
			}
		}
	}()
}

// Close stops the packet pump and ends all live subscriptions.
func (d *DiscordSource) Close() error {
	close(d.stopPump)
	d.pumpWG.Wait()
	d.mu.Lock()
	subs := make([]*speakerStream, 0, len(d.subs))
	for _, st := range d.subs {
		subs = append(subs, st)
	}
	d.mu.Unlock()
	for _, st := range subs {
		_ = st.Close()
	}
	return nil
}

func (d *DiscordSource) route(ssrc uint32, opusPayload []byte) {
	d.mu.Lock()
	uid := d.ssrcMap[ssrc]
	var st *speakerStream
	if uid != "" {
		st = d.subs[subKey(d.sessionID, uid)]
	}
	if st == nil {
		d.mu.Unlock()
		return
	}
	select {
	case <-st.done:
		d.mu.Unlock()
		return
	default:
	}
	// Copy the payload; discordgo reuses packet buffers.
	frame := OpusFrame{Data: append([]byte(nil), opusPayload...)}
	select {
	case st.frames <- frame:
	default:
		d.dropped[ssrc]++
		if d.dropped[ssrc]%100 == 1 {
			logging.Warnw("dropping opus frame; subscriber queue full", "ssrc", ssrc, "user_id", uid, "dropped", d.dropped[ssrc])
		}
	}
	d.mu.Unlock()
}

// Subscribe returns the live stream for the pair, creating one if needed.
func (d *DiscordSource) Subscribe(sessionID, speakerID string) (AudioStream, error) {
	if sessionID == "" || speakerID == "" {
		return nil, fmt.Errorf("subscribe requires session and speaker IDs")
	}
	key := subKey(sessionID, speakerID)
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.subs[key]; ok {
		return st, nil
	}
	st := &speakerStream{
		frames: make(chan OpusFrame, d.queueSize),
		done:   make(chan struct{}),
	}
	st.onClose = func() {
		d.mu.Lock()
		if d.subs[key] == st {
			delete(d.subs, key)
		}
		d.mu.Unlock()
	}
	d.subs[key] = st
	return st, nil
}

// Subscribed reports whether the pair currently has a live subscription.
func (d *DiscordSource) Subscribed(sessionID, speakerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.subs[subKey(sessionID, speakerID)]
	return ok
}

// HandleSpeakingUpdate maps SSRC -> user and reports speech onset upstream.
func (d *DiscordSource) HandleSpeakingUpdate(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
	d.mu.Lock()
	d.ssrcMap[uint32(su.SSRC)] = su.UserID
	d.mu.Unlock()
	logging.Debugw("mapped SSRC -> user", "ssrc", su.SSRC, "user_id", su.UserID, "speaking", su.Speaking)
	if su.Speaking && d.events != nil {
		d.events.SpeakerStarted(d.sessionID, su.UserID)
	}
}

// HandleVoiceState ends a speaker's subscription when they leave the channel.
func (d *DiscordSource) HandleVoiceState(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.ChannelID != "" {
		return
	}
	d.mu.Lock()
	st := d.subs[subKey(d.sessionID, vs.UserID)]
	d.mu.Unlock()
	if st != nil {
		_ = st.Close()
	}
	if d.events != nil {
		d.events.SpeakerLeft(d.sessionID, vs.UserID)
	}
}
