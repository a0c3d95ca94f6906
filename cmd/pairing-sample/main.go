//go:build ignore
// +build ignore

// Standalone pairing walkthrough: connects a single whatsmeow client against
// a throwaway sqlite store and prints the QR payload for manual scanning.
// Useful when debugging driver event translation without the full console.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
)

func main() {
	container, err := sqlstore.New("sqlite3", "file:pairing_sample.db?_foreign_keys=on", nil)
	if err != nil {
		log.Fatalf("failed to create sqlstore: %v", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		log.Fatalf("failed to get device storage: %v", err)
	}

	client := whatsmeow.NewClient(device, nil)
	client.AddEventHandler(func(evt interface{}) {
		switch e := evt.(type) {
		case *events.QR:
			if len(e.Codes) > 0 {
				fmt.Println("scan this payload with WhatsApp:", e.Codes[0])
			}
		case *events.PairSuccess:
			fmt.Println("pairing succeeded:", e.ID)
		case *events.Connected:
			fmt.Println("connected")
		case *events.OfflineSyncCompleted:
			fmt.Println("history sync completed, session is ready")
		case *events.Message:
			if conv := e.Message.GetConversation(); conv != "" {
				fmt.Printf("message from %s: %s\n", e.Info.Sender.User, conv)
			}
		}
	})

	if err := client.Connect(); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	fmt.Println("disconnecting...")
	client.Disconnect()
}
