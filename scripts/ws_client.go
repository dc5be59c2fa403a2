// Package main runs a demo WebSocket client that optimizes a short walk and
// prints every progress frame.
package main

import (
	"encoding/json"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const demoRequest = `{
  "waypoints": [
    {"id":"hotel","name":"Hotel","type":"start","location":{"lat":48.8566,"lng":2.3522},"priority":"medium","difficulty":"easy"},
    {"id":"museum","name":"Museum","type":"poi","location":{"lat":48.8606,"lng":2.3376},"estimatedDuration":45,"priority":"high","difficulty":"easy","tags":["art"]},
    {"id":"garden","name":"Garden","type":"poi","location":{"lat":48.8635,"lng":2.3275},"estimatedDuration":30,"priority":"medium","difficulty":"easy","tags":["nature"]},
    {"id":"cathedral","name":"Cathedral","type":"poi","location":{"lat":48.8530,"lng":2.3499},"estimatedDuration":40,"priority":"essential","difficulty":"moderate"},
    {"id":"cafe","name":"Cafe","type":"rest","location":{"lat":48.8580,"lng":2.3470},"estimatedDuration":20,"priority":"low","difficulty":"easy"}
  ],
  "constraints": {"maxDuration":150,"preferredPace":"moderate","interests":["art"]}
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/optimize/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "optimize", ID: "demo", Payload: json.RawMessage(demoRequest)}); err != nil {
		log.Fatal(err)
	}
	_ = c.SetReadDeadline(time.Now().Add(15 * time.Second))
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Fatalf("read: %v", err)
		}
		log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		if m.Type == "route" || m.Type == "error" {
			return
		}
	}
}
