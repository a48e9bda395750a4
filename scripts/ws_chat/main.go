package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/chatrelay/chatrelay-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT from /api/register or /api/login")
	roomID := flag.Int64("room", 0, "room id to join")
	dmUserID := flag.Int64("dm", 0, "user id to open a DM with")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}
	if (*roomID == 0) == (*dmUserID == 0) {
		return errors.New("exactly one of -room or -dm is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	channel := proto.ChannelData{RoomID: *roomID, DMUserID: *dmUserID}
	send := func(msgType string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("marshal %s: %v", msgType, err)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.InboundTypeJoin, channel)

	if *roomID != 0 {
		fmt.Printf("Connected to %s, room %d\n", *addr, *roomID)
	} else {
		fmt.Printf("Connected to %s, DM with user %d\n", *addr, *dmUserID)
	}
	fmt.Println("Type a message and press Enter to send. Commands:")
	fmt.Println("  /edit <id> <text>   /delete <id>   /unsend   /clear   /typing")
	fmt.Println("Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, channel, *roomID, send)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError {
			if outbound.Error != nil {
				fmt.Printf("! error %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			}
			continue
		}
		printEvent(outbound)
	}
}

func printEvent(outbound proto.Outbound) {
	switch outbound.Event {
	case proto.EventHistory:
		var evt proto.EventHistoryData
		if !decode(outbound, &evt) {
			return
		}
		fmt.Printf("--- %s: %d messages ---\n", evt.Channel, len(evt.Messages))
		for _, msg := range evt.Messages {
			printMessage(msg)
		}
	case proto.EventPresence:
		var evt proto.EventPresenceData
		if !decode(outbound, &evt) {
			return
		}
		names := make([]string, 0, len(evt.Users))
		for _, u := range evt.Users {
			names = append(names, u.Username)
		}
		fmt.Printf("[%s] online: %s\n", evt.Channel, strings.Join(names, ", "))
	case proto.EventMessagePending:
		var msg proto.MessagePayload
		if !decode(outbound, &msg) {
			return
		}
		printMessage(msg)
	case proto.EventMessageConfirmed:
		var evt proto.EventConfirmedData
		if !decode(outbound, &evt) {
			return
		}
		if evt.TempID != "" {
			fmt.Printf("[%s] #%d delivered\n", evt.Channel, evt.Message.ID)
		} else {
			printMessage(evt.Message)
		}
	case proto.EventSendFailed:
		var evt proto.EventSendFailedData
		if !decode(outbound, &evt) {
			return
		}
		fmt.Printf("! send %s failed: %s\n", evt.TempID, evt.Reason)
	case proto.EventTyping:
		var evt proto.EventTypingData
		if !decode(outbound, &evt) {
			return
		}
		fmt.Printf("[%s] %s is typing...\n", evt.Channel, evt.Username)
	case proto.EventMessageEdited:
		var msg proto.MessagePayload
		if !decode(outbound, &msg) {
			return
		}
		fmt.Printf("[%s] #%d edited by %s: %s\n", msg.Channel, msg.ID, msg.Username, msg.Text)
	case proto.EventMessageDeleted:
		var evt proto.EventDeletedData
		if !decode(outbound, &evt) {
			return
		}
		fmt.Printf("[%s] #%d deleted\n", evt.Channel, evt.MessageID)
	case proto.EventMessagesUnsent:
		var evt proto.EventUnsentData
		if !decode(outbound, &evt) {
			return
		}
		fmt.Printf("[%s] all messages by user %d removed\n", evt.Channel, evt.UserID)
	case proto.EventChatCleared:
		var evt proto.EventClearedData
		if !decode(outbound, &evt) {
			return
		}
		fmt.Printf("[%s] history cleared\n", evt.Channel)
	default:
		fmt.Printf("event=%s data=%v\n", outbound.Event, outbound.Data)
	}
}

func printMessage(msg proto.MessagePayload) {
	marker := ""
	if msg.Pending {
		marker = " (sending)"
	} else if msg.Edited {
		marker = " (edited)"
	}
	text := msg.Text
	if msg.Attachment != nil {
		text = strings.TrimSpace(text + " [" + msg.Attachment.Kind + ": " + msg.Attachment.URL + "]")
	}
	fmt.Printf("[%s] %s: %s%s\n", msg.Channel, msg.Username, text, marker)
}

func decode(outbound proto.Outbound, out any) bool {
	raw, err := json.Marshal(outbound.Data)
	if err != nil {
		log.Printf("marshal outbound data: %v", err)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Printf("unmarshal %s: %v", outbound.Event, err)
		return false
	}
	return true
}

func writeLoop(ctx context.Context, channel proto.ChannelData, roomID int64, send func(string, any)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	tempSeq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if strings.HasPrefix(text, "/") {
				handleCommand(text, channel, roomID, send)
				continue
			}

			tempSeq++
			send(proto.InboundTypeSend, proto.SendData{
				ChannelData: channel,
				Text:        text,
				TempID:      "cli-" + strconv.Itoa(tempSeq),
			})
		}
	}
}

func handleCommand(line string, channel proto.ChannelData, roomID int64, send func(string, any)) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/edit":
		if len(fields) < 3 {
			fmt.Println("usage: /edit <id> <text>")
			return
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("usage: /edit <id> <text>")
			return
		}
		send(proto.InboundTypeEdit, proto.EditData{
			MessageID: id,
			Text:      strings.Join(fields[2:], " "),
		})
	case "/delete":
		if len(fields) != 2 {
			fmt.Println("usage: /delete <id>")
			return
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("usage: /delete <id>")
			return
		}
		send(proto.InboundTypeDelete, proto.DeleteData{MessageID: id})
	case "/unsend":
		send(proto.InboundTypeUnsend, channel)
	case "/clear":
		if roomID == 0 {
			fmt.Println("/clear only works in a room")
			return
		}
		send(proto.InboundTypeClear, proto.ClearData{RoomID: roomID})
	case "/typing":
		send(proto.InboundTypeTyping, channel)
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
}
