// Package cli is the terminal client: join a room, chat, and place or
// answer calls with slash commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/dkeye/huddle/internal/client/call"
	"github.com/dkeye/huddle/internal/client/signaling"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/dkeye/huddle/internal/rtc"
)

var (
	serverURL string
	roomID    string
	name      string
	iceURLs   []string
)

var rootCmd = &cobra.Command{
	Use:   "huddle-client",
	Short: "Terminal client for the huddle chat and call server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "ws://localhost:8080/api/ws/signal", "signaling server URL")
	rootCmd.Flags().StringVarP(&roomID, "room", "r", "", "room to join")
	rootCmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	rootCmd.Flags().StringSliceVar(&iceURLs, "ice", nil, "ICE server URLs")
	_ = rootCmd.MarkFlagRequired("room")
	_ = rootCmd.MarkFlagRequired("name")
}

func Execute() error {
	return rootCmd.Execute()
}

// console renders call events between chat lines.
type console struct{}

func (console) IncomingCall(from, callType string) {
	fmt.Printf("*** %s is %s calling — /accept or /reject\n", from, callType)
}

func (console) CallEnded(reason string) {
	fmt.Printf("*** call over: %s\n", reason)
}

func (console) RemoteTrack(track *webrtc.TrackRemote) {
	fmt.Printf("*** receiving remote %s\n", track.Kind())
}

func run(ctx context.Context) error {
	client := signaling.NewClient(serverURL)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	peerCfg := rtc.Config(iceURLs)
	session := call.NewSession(roomID, name, client, call.StaticMedia{},
		func() (call.PeerLink, error) { return rtc.New(peerCfg) }, console{})

	if err := client.Send(protocol.Event{Type: protocol.EventJoinRoom, Room: roomID, Name: name}); err != nil {
		return err
	}

	go func() {
		for ev := range client.Events() {
			if session.HandleEvent(ctx, ev) {
				continue
			}
			switch ev.Type {
			case protocol.EventExistingUsers:
				fmt.Printf("--- in room: %s\n", strings.Join(ev.Users, ", "))
			case protocol.EventUserConnected:
				fmt.Printf("--- %s joined\n", ev.From)
			case protocol.EventUserDisconnected:
				fmt.Printf("--- %s left\n", ev.From)
			case protocol.EventReceiveMessage:
				fmt.Printf("[%s] %s: %s\n", ev.Timestamp, ev.From, ev.Text)
			case protocol.EventError:
				fmt.Printf("!!! server: %s\n", ev.Error)
			}
		}
		fmt.Println("--- connection closed")
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := client.Send(protocol.Event{Type: protocol.EventSendMessage, Room: roomID, Text: line}); err != nil {
				fmt.Printf("!!! %v\n", err)
			}
			continue
		}
		if done := command(ctx, session, line); done {
			return nil
		}
	}
	return scanner.Err()
}

// command handles a slash command; returns true on /quit.
func command(ctx context.Context, session *call.Session, line string) bool {
	switch fields := strings.Fields(line); fields[0] {
	case "/call":
		video := len(fields) > 1 && fields[1] == "video"
		if err := session.StartCall(ctx, video); err != nil {
			fmt.Printf("!!! %v\n", err)
		} else {
			fmt.Println("*** calling...")
		}
	case "/accept":
		if err := session.Accept(ctx); err != nil {
			fmt.Printf("!!! %v\n", err)
		}
	case "/reject":
		if err := session.Reject(); err != nil {
			fmt.Printf("!!! %v\n", err)
		}
	case "/hangup":
		session.Hangup()
	case "/mute":
		session.EnableAudio(false)
	case "/unmute":
		session.EnableAudio(true)
	case "/quit":
		session.Hangup()
		return true
	default:
		fmt.Println("commands: /call [video] /accept /reject /hangup /mute /unmute /quit")
	}
	return false
}
