// Package live runs a full-duplex voice conversation against a provider's
// live endpoint.
//
// # Architecture
//
// A Controller owns one session at a time and wires three loops together:
//
//	Microphone → Framer → encode → outbound queue → LiveConn.SendAudio
//
//	LiveConn.Events → Transcript (user / assistant entries)
//	                → Scheduler  → Output (gapless playback)
//
// Capture never waits on the network: frames that do not fit in the outbound
// queue are dropped. Inbound audio chunks are scheduled back to back on the
// output clock; an interrupted signal stops everything that is scheduled and
// rewinds the playback cursor.
//
// # State Machine
//
//	IDLE → STARTING → OPEN → CLOSING → IDLE
//
// Start is only accepted from IDLE. Stop, a transport failure, or
// cancellation of the context passed to Start moves the session to CLOSING,
// releases the microphone, stops scheduled audio, closes the output and the
// remote session, and returns to IDLE once every loop has exited.
//
// # Usage
//
//	ctrl := live.NewController(mic, speaker, live.RouterConnector(router, cfg),
//	    live.WithLiveConfig(types.LiveConfig{VoiceName: "Puck"}))
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//	for event := range ctrl.Events() {
//	    switch e := event.(type) {
//	    case *live.TranscriptEvent:
//	        render(e.Entry)
//	    case *live.StateChangedEvent:
//	        if e.To == live.StateIdle {
//	            return nil
//	        }
//	    }
//	}
//
// Passing a nil Speaker selects transcription-only mode: only the user's
// speech is transcribed and no audio is played.
package live
