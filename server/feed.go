package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cyclopcam/unrealgt/pkg/gt"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const feedSendBufferSize = 16

// A websocket connection that receives every FrameResult as JSON
type feed struct {
	conn      *websocket.Conn
	sendQueue chan []byte
	closed    chan bool
}

func (s *Server) httpFeed(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	f := &feed{
		conn:      conn,
		sendQueue: make(chan []byte, feedSendBufferSize),
		closed:    make(chan bool),
	}
	s.feedsLock.Lock()
	s.feeds[f] = true
	s.feedsLock.Unlock()
	s.Log.Infof("Websocket feed connected from %v", r.RemoteAddr)

	go s.feedReader(f)
	s.feedWriter(f)
}

// We don't expect any messages from the client, but we must read in order to notice when it disconnects
func (s *Server) feedReader(f *feed) {
	for {
		if _, _, err := f.conn.ReadMessage(); err != nil {
			s.removeFeed(f)
			return
		}
	}
}

func (s *Server) feedWriter(f *feed) {
	defer f.conn.Close()
	for {
		select {
		case msg := <-f.sendQueue:
			f.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := f.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.removeFeed(f)
				return
			}
		case <-f.closed:
			return
		}
	}
}

func (s *Server) removeFeed(f *feed) {
	s.feedsLock.Lock()
	defer s.feedsLock.Unlock()
	if s.feeds[f] {
		delete(s.feeds, f)
		close(f.closed)
	}
}

func (s *Server) closeFeeds() {
	s.feedsLock.Lock()
	defer s.feedsLock.Unlock()
	for f := range s.feeds {
		close(f.closed)
	}
	s.feeds = map[*feed]bool{}
}

// Send the result to every feed. Slow clients miss frames, instead of stalling the annotator.
func (s *Server) broadcast(result *gt.FrameResult) {
	msg, err := json.Marshal(result)
	if err != nil {
		s.Log.Errorf("Failed to encode frame result: %v", err)
		return
	}
	s.feedsLock.Lock()
	defer s.feedsLock.Unlock()
	for f := range s.feeds {
		select {
		case f.sendQueue <- msg:
		default:
		}
	}
}
