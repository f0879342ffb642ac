package app

// handlers.go 实现管理 API：发送类命令直达网关，刷新类命令经 Refresher 写缓存，
// 状态查询直接读缓存。请求体字段在此解码后交由命令目录做参数校验。
import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/zcw199604/evolution-bridge/internal/evolution"
)

type recipientPayload struct {
	PhoneNumber string `json:"phone_number"`
	GroupID     string `json:"group_id"`
}

func (p recipientPayload) toRecipient() evolution.Recipient {
	return evolution.Recipient{PhoneNumber: p.PhoneNumber, GroupID: p.GroupID}
}

func (s *Server) instanceByID(w http.ResponseWriter, r *http.Request) (*Instance, bool) {
	id := r.PathValue("instance")
	ins, ok := s.instances[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "实例不存在: " + id})
		return nil, false
	}
	return ins, true
}

// execute 解码请求体、构建命令并执行，统一处理响应与错误映射。
func (s *Server) execute(w http.ResponseWriter, r *http.Request, ins *Instance, cmd evolution.Command) {
	result, err := ins.Client.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "请求体解析失败: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		Message     string   `json:"message"`
		Delay       int      `json:"delay"`
		LinkPreview *bool    `json:"link_preview"`
		MentionAll  bool     `json:"mention_all"`
		Mentioned   []string `json:"mentioned"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.TextCommand{
		Recipient:   body.toRecipient(),
		Text:        body.Message,
		Delay:       body.Delay,
		LinkPreview: body.LinkPreview,
		MentionAll:  body.MentionAll,
		Mentioned:   body.Mentioned,
	})
}

func (s *Server) handleSendMedia(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		MediaURL  string `json:"media_url"`
		MediaType string `json:"media_type"`
		Caption   string `json:"caption"`
		FileName  string `json:"filename"`
		Delay     int    `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.MediaCommand{
		Recipient: body.toRecipient(),
		MediaURL:  body.MediaURL,
		MediaType: body.MediaType,
		Caption:   body.Caption,
		FileName:  body.FileName,
		Delay:     body.Delay,
	})
}

func (s *Server) handleSendAudio(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		AudioURL string `json:"audio_url"`
		Delay    int    `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.AudioCommand{
		Recipient: body.toRecipient(),
		AudioURL:  body.AudioURL,
		Delay:     body.Delay,
	})
}

func (s *Server) handleSendSticker(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		StickerURL string `json:"sticker_url"`
		Delay      int    `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.StickerCommand{
		Recipient:  body.toRecipient(),
		StickerURL: body.StickerURL,
		Delay:      body.Delay,
	})
}

func (s *Server) handleSendLocation(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
		Delay     int     `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.LocationCommand{
		Recipient: body.toRecipient(),
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Name:      body.Name,
		Address:   body.Address,
		Delay:     body.Delay,
	})
}

func (s *Server) handleSendContact(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		ContactName  string `json:"contact_name"`
		ContactPhone string `json:"contact_phone"`
		ContactEmail string `json:"contact_email"`
		ContactOrg   string `json:"contact_organization"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.ContactCommand{
		Recipient:    body.toRecipient(),
		FullName:     body.ContactName,
		ContactPhone: body.ContactPhone,
		Email:        body.ContactEmail,
		Organization: body.ContactOrg,
	})
}

func (s *Server) handleSendReaction(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		MessageID string `json:"message_id"`
		Reaction  string `json:"reaction"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.ReactionCommand{
		Recipient: body.toRecipient(),
		MessageID: body.MessageID,
		Reaction:  body.Reaction,
	})
}

func (s *Server) handleSendPoll(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		PollName      string `json:"poll_name"`
		PollOptions   string `json:"poll_options"`
		MaxSelections int    `json:"max_selections"`
		Delay         int    `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.PollCommand{
		Recipient:     body.toRecipient(),
		Name:          body.PollName,
		Options:       body.PollOptions,
		MaxSelections: body.MaxSelections,
		Delay:         body.Delay,
	})
}

func (s *Server) handleSendList(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		Title       string                   `json:"title"`
		Description string                   `json:"description"`
		ButtonText  string                   `json:"button_text"`
		Sections    []map[string]interface{} `json:"sections"`
		Footer      string                   `json:"footer"`
		Delay       int                      `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.ListCommand{
		Recipient:   body.toRecipient(),
		Title:       body.Title,
		Description: body.Description,
		ButtonText:  body.ButtonText,
		Sections:    body.Sections,
		Footer:      body.Footer,
		Delay:       body.Delay,
	})
}

func (s *Server) handleSendButtons(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		Title       string                   `json:"title"`
		Description string                   `json:"description"`
		Buttons     []map[string]interface{} `json:"buttons"`
		Footer      string                   `json:"footer"`
		Delay       int                      `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.ButtonsCommand{
		Recipient:   body.toRecipient(),
		Title:       body.Title,
		Description: body.Description,
		Buttons:     body.Buttons,
		Footer:      body.Footer,
		Delay:       body.Delay,
	})
}

func (s *Server) handleSendPresence(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		recipientPayload
		Presence string `json:"presence"`
		Delay    int    `json:"delay"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.PresenceCommand{
		Recipient: body.toRecipient(),
		Presence:  body.Presence,
		Delay:     body.Delay,
	})
}

func (s *Server) handleCheckNumbers(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		Numbers []string `json:"numbers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.CheckNumbersCommand{Numbers: body.Numbers})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		RemoteJID string `json:"remote_jid"`
		MessageID string `json:"message_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.MarkReadCommand{
		RemoteJID: body.RemoteJID,
		MessageID: body.MessageID,
	})
}

func (s *Server) handleFetchProfile(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		PhoneNumber string `json:"phone_number"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.ProfileCommand{Number: body.PhoneNumber})
}

func (s *Server) handleFetchProfilePicture(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	var body struct {
		PhoneNumber string `json:"phone_number"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, ins, evolution.ProfilePictureCommand{Number: body.PhoneNumber})
}

func (s *Server) handleRefreshGroups(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	count, err := s.refresher.RefreshGroups(r.Context(), ins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instance":     ins.ID,
		"groups_count": count,
	})
}

func (s *Server) handleRefreshConnection(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	state, err := s.refresher.RefreshConnection(r.Context(), ins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instance": ins.ID,
		"state":    state,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ins.Store.Snapshot())
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	ins, ok := s.instanceByID(w, r)
	if !ok {
		return
	}
	if err := ins.Store.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ins.Store.Snapshot())
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("响应编码失败", "error", err)
	}
}

// writeError 将错误分类映射为 HTTP 状态：参数校验 400，上游网关错误 502，
// 传输失败 504，其余 500。
func writeError(w http.ResponseWriter, err error) {
	var validationErr *evolution.ValidationError
	var apiErr *evolution.APIError

	statusCode := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		statusCode = http.StatusBadRequest
	case errors.Is(err, evolution.ErrConnection):
		statusCode = http.StatusGatewayTimeout
	case errors.Is(err, evolution.ErrAuth),
		errors.Is(err, evolution.ErrNotFound),
		errors.As(err, &apiErr):
		statusCode = http.StatusBadGateway
	}

	writeJSON(w, statusCode, map[string]interface{}{"error": err.Error()})
}
