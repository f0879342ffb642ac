// 命令目录单元测试：收件人解析、载荷塑形与默认值规则。
package evolution

import (
	"errors"
	"reflect"
	"testing"
)

func TestRecipient_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      Recipient
		want    string
		wantErr bool
	}{
		{
			name: "phone-only",
			in:   Recipient{PhoneNumber: "5511999999999"},
			want: "5511999999999",
		},
		{
			name: "group-only-normalized",
			in:   Recipient{GroupID: "123"},
			want: "123@g.us",
		},
		{
			name: "group-already-normalized",
			in:   Recipient{GroupID: "123@g.us"},
			want: "123@g.us",
		},
		{
			name:    "both",
			in:      Recipient{PhoneNumber: "55", GroupID: "123"},
			wantErr: true,
		},
		{
			name:    "neither",
			in:      Recipient{},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.in.Resolve()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Resolve() error = nil, want ValidationError")
				}
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Fatalf("Resolve() error = %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeGroupJID_Idempotent(t *testing.T) {
	t.Parallel()

	if got := NormalizeGroupJID("123"); got != "123@g.us" {
		t.Fatalf("NormalizeGroupJID(123) = %q, want %q", got, "123@g.us")
	}
	once := NormalizeGroupJID("123")
	if got := NormalizeGroupJID(once); got != once {
		t.Fatalf("NormalizeGroupJID(NormalizeGroupJID(x)) = %q, want %q", got, once)
	}
}

func TestDefaultMimetype(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"image", "image/png"},
		{"video", "video/mp4"},
		{"document", "application/pdf"},
		{"unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tc := range tests {
		if got := DefaultMimetype(tc.in); got != tc.want {
			t.Fatalf("DefaultMimetype(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParsePollOptions(t *testing.T) {
	t.Parallel()

	got := ParsePollOptions("A, B ,,C")
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParsePollOptions() = %v, want %v", got, want)
	}

	if got := ParsePollOptions(" , ,"); len(got) != 0 {
		t.Fatalf("ParsePollOptions(blank) = %v, want empty", got)
	}
}

func TestTextCommand_Request_Minimal(t *testing.T) {
	t.Parallel()

	req, err := TextCommand{
		Recipient: Recipient{PhoneNumber: "5511999999999"},
		Text:      "hi",
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	if req.Method != "POST" {
		t.Fatalf("Method = %q, want POST", req.Method)
	}
	if req.Path != "/message/sendText" {
		t.Fatalf("Path = %q, want /message/sendText", req.Path)
	}
	want := map[string]interface{}{
		"number":      "5511999999999",
		"text":        "hi",
		"linkPreview": true,
	}
	if !reflect.DeepEqual(req.Body, want) {
		t.Fatalf("Body = %v, want %v", req.Body, want)
	}
}

func TestTextCommand_Request_OptionalFields(t *testing.T) {
	t.Parallel()

	linkPreview := false
	req, err := TextCommand{
		Recipient:   Recipient{GroupID: "42"},
		Text:        "hey",
		Delay:       1200,
		LinkPreview: &linkPreview,
		MentionAll:  true,
		Mentioned:   []string{"5511999999999"},
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	if req.Body["number"] != "42@g.us" {
		t.Fatalf("number = %v, want 42@g.us", req.Body["number"])
	}
	if req.Body["delay"] != 1200 {
		t.Fatalf("delay = %v, want 1200", req.Body["delay"])
	}
	if req.Body["linkPreview"] != false {
		t.Fatalf("linkPreview = %v, want false", req.Body["linkPreview"])
	}
	if req.Body["mentionsEveryOne"] != true {
		t.Fatalf("mentionsEveryOne = %v, want true", req.Body["mentionsEveryOne"])
	}
}

func TestMediaCommand_Request_MimetypeAndOmission(t *testing.T) {
	t.Parallel()

	req, err := MediaCommand{
		Recipient: Recipient{PhoneNumber: "55"},
		MediaURL:  "https://example.com/a.png",
		MediaType: "image",
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	if req.Body["mimetype"] != "image/png" {
		t.Fatalf("mimetype = %v, want image/png", req.Body["mimetype"])
	}
	for _, key := range []string{"caption", "fileName", "delay"} {
		if _, ok := req.Body[key]; ok {
			t.Fatalf("Body 含未设置的可选字段 %q", key)
		}
	}
}

func TestReactionCommand_Request_RemoteKey(t *testing.T) {
	t.Parallel()

	req, err := ReactionCommand{
		Recipient: Recipient{PhoneNumber: "5511999999999"},
		MessageID: "MSG1",
		Reaction:  "👍",
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	key, ok := req.Body["key"].(map[string]interface{})
	if !ok {
		t.Fatalf("key 缺失或类型不符: %v", req.Body["key"])
	}
	if key["remoteJid"] != "5511999999999@s.whatsapp.net" {
		t.Fatalf("remoteJid = %v, want 5511999999999@s.whatsapp.net", key["remoteJid"])
	}
	if key["id"] != "MSG1" {
		t.Fatalf("id = %v, want MSG1", key["id"])
	}
}

func TestReactionCommand_Request_GroupRecipientKeepsJID(t *testing.T) {
	t.Parallel()

	req, err := ReactionCommand{
		Recipient: Recipient{GroupID: "123"},
		MessageID: "MSG1",
		Reaction:  "🎉",
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	key := req.Body["key"].(map[string]interface{})
	if key["remoteJid"] != "123@g.us" {
		t.Fatalf("remoteJid = %v, want 123@g.us", key["remoteJid"])
	}
}

func TestContactCommand_Request_WrapsList(t *testing.T) {
	t.Parallel()

	req, err := ContactCommand{
		Recipient:    Recipient{PhoneNumber: "55"},
		FullName:     "Alice",
		ContactPhone: "5511888888888",
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	contacts, ok := req.Body["contact"].([]map[string]interface{})
	if !ok || len(contacts) != 1 {
		t.Fatalf("contact = %v, want 单元素列表", req.Body["contact"])
	}
	if contacts[0]["fullName"] != "Alice" {
		t.Fatalf("fullName = %v, want Alice", contacts[0]["fullName"])
	}
	if _, ok := contacts[0]["email"]; ok {
		t.Fatalf("email 未设置时不应出现在载荷中")
	}
}

func TestPollCommand_Request(t *testing.T) {
	t.Parallel()

	req, err := PollCommand{
		Recipient: Recipient{PhoneNumber: "55"},
		Name:      "lunch",
		Options:   "A, B ,,C",
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	if req.Body["selectableCount"] != 1 {
		t.Fatalf("selectableCount = %v, want 1", req.Body["selectableCount"])
	}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(req.Body["values"], want) {
		t.Fatalf("values = %v, want %v", req.Body["values"], want)
	}

	_, err = PollCommand{
		Recipient: Recipient{PhoneNumber: "55"},
		Name:      "empty",
		Options:   " , ",
	}.Request()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("空选项 error = %v, want ValidationError", err)
	}
}

func TestPresenceCommand_Request(t *testing.T) {
	t.Parallel()

	req, err := PresenceCommand{
		Recipient: Recipient{PhoneNumber: "55"},
		Presence:  PresenceComposing,
	}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if req.Body["delay"] != 1000 {
		t.Fatalf("delay = %v, want 1000", req.Body["delay"])
	}

	_, err = PresenceCommand{
		Recipient: Recipient{PhoneNumber: "55"},
		Presence:  "sleeping",
	}.Request()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("非法 presence error = %v, want ValidationError", err)
	}
}

func TestFetchGroupsCommand_Request_QueryAlwaysPresent(t *testing.T) {
	t.Parallel()

	req, err := FetchGroupsCommand{}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if got := req.Query.Get("getParticipants"); got != "false" {
		t.Fatalf("getParticipants = %q, want false", got)
	}

	req, err = FetchGroupsCommand{GetParticipants: true}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if got := req.Query.Get("getParticipants"); got != "true" {
		t.Fatalf("getParticipants = %q, want true", got)
	}
}

func TestCheckNumbersCommand_Request(t *testing.T) {
	t.Parallel()

	req, err := CheckNumbersCommand{Numbers: []string{"55", "56"}}.Request()
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if req.Path != "/chat/whatsappNumbers" {
		t.Fatalf("Path = %q, want /chat/whatsappNumbers", req.Path)
	}

	_, err = CheckNumbersCommand{}.Request()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("空 numbers error = %v, want ValidationError", err)
	}
}
