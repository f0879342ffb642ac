// Package evolution 封装 Evolution API（WhatsApp 网关）的命令构建、请求执行与错误分类。
package evolution

// command.go 实现命令目录：将各逻辑命令映射为 HTTP 方法、端点与 JSON 载荷。
// 纯函数、无 I/O；参数不合法时返回 ValidationError。
import (
	"net/url"
	"strings"
)

// Request 为命令目录的构建产物：HTTP 方法、端点路径（不含实例后缀）、
// 查询参数与 JSON 载荷。
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]interface{}
}

// Command 为逻辑命令的统一抽象，由各命令结构体实现。
type Command interface {
	Request() (Request, error)
}

// Recipient 表示一条发送命令的收件人：手机号或群组 ID，二者必填其一且不可同时填写。
type Recipient struct {
	PhoneNumber string
	GroupID     string
}

// Resolve 解析收件人：群组 ID 会被归一化补齐 @g.us 后缀（幂等）。
func (r Recipient) Resolve() (string, error) {
	phone := strings.TrimSpace(r.PhoneNumber)
	group := strings.TrimSpace(r.GroupID)

	switch {
	case phone != "" && group != "":
		return "", newValidationError("phone_number 与 group_id 不能同时填写")
	case group != "":
		return NormalizeGroupJID(group), nil
	case phone != "":
		return phone, nil
	default:
		return "", newValidationError("phone_number 与 group_id 必须填写其一")
	}
}

// NormalizeGroupJID 为群组 ID 补齐 @g.us 后缀；已带后缀时原样返回。
func NormalizeGroupJID(groupID string) string {
	if strings.HasSuffix(groupID, GroupJIDSuffix) {
		return groupID
	}
	return groupID + GroupJIDSuffix
}

// DefaultMimetype 按媒体类型选择默认 mimetype，未识别类型回退为通用二进制。
func DefaultMimetype(mediaType string) string {
	switch mediaType {
	case "image":
		return "image/png"
	case "video":
		return "video/mp4"
	case "document":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ParsePollOptions 将用户输入的逗号分隔选项串解析为去首尾空白、
// 过滤空项的有序列表（不去重）。
func ParsePollOptions(raw string) []string {
	parts := strings.Split(raw, ",")
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			options = append(options, v)
		}
	}
	return options
}

// TextCommand 发送文本消息。LinkPreview 缺省为 true。
type TextCommand struct {
	Recipient   Recipient
	Text        string
	Delay       int
	LinkPreview *bool
	MentionAll  bool
	Mentioned   []string
}

func (c TextCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	linkPreview := true
	if c.LinkPreview != nil {
		linkPreview = *c.LinkPreview
	}
	body := map[string]interface{}{
		"number":      number,
		"text":        c.Text,
		"linkPreview": linkPreview,
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	if c.MentionAll {
		body["mentionsEveryOne"] = true
	}
	if len(c.Mentioned) > 0 {
		body["mentioned"] = c.Mentioned
	}
	return Request{Method: "POST", Path: endpointSendText, Body: body}, nil
}

// MediaCommand 发送媒体消息（图片/视频/文档）。MediaURL 须为已解析完成的可发送地址。
type MediaCommand struct {
	Recipient Recipient
	MediaURL  string
	MediaType string
	Caption   string
	FileName  string
	Delay     int
}

func (c MediaCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	body := map[string]interface{}{
		"number":    number,
		"mediatype": c.MediaType,
		"media":     c.MediaURL,
		"mimetype":  DefaultMimetype(c.MediaType),
	}
	if c.Caption != "" {
		body["caption"] = c.Caption
	}
	if c.FileName != "" {
		body["fileName"] = c.FileName
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendMedia, Body: body}, nil
}

// AudioCommand 发送语音消息。
type AudioCommand struct {
	Recipient Recipient
	AudioURL  string
	Delay     int
}

func (c AudioCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	body := map[string]interface{}{
		"number": number,
		"audio":  c.AudioURL,
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendAudio, Body: body}, nil
}

// StickerCommand 发送贴纸消息。
type StickerCommand struct {
	Recipient  Recipient
	StickerURL string
	Delay      int
}

func (c StickerCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	body := map[string]interface{}{
		"number":  number,
		"sticker": c.StickerURL,
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendSticker, Body: body}, nil
}

// LocationCommand 发送位置消息。
type LocationCommand struct {
	Recipient Recipient
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
	Delay     int
}

func (c LocationCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	body := map[string]interface{}{
		"number":    number,
		"latitude":  c.Latitude,
		"longitude": c.Longitude,
	}
	if c.Name != "" {
		body["name"] = c.Name
	}
	if c.Address != "" {
		body["address"] = c.Address
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendLocation, Body: body}, nil
}

// ContactCommand 发送联系人名片。线格式要求 contact 为列表，即便只有一个联系人。
type ContactCommand struct {
	Recipient    Recipient
	FullName     string
	ContactPhone string
	Email        string
	Organization string
}

func (c ContactCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(c.FullName) == "" {
		return Request{}, newValidationError("contact_name 不能为空")
	}
	if strings.TrimSpace(c.ContactPhone) == "" {
		return Request{}, newValidationError("contact_phone 不能为空")
	}
	contact := map[string]interface{}{
		"fullName":    c.FullName,
		"phoneNumber": c.ContactPhone,
	}
	if c.Email != "" {
		contact["email"] = c.Email
	}
	if c.Organization != "" {
		contact["organization"] = c.Organization
	}
	body := map[string]interface{}{
		"number":  number,
		"contact": []map[string]interface{}{contact},
	}
	return Request{Method: "POST", Path: endpointSendContact, Body: body}, nil
}

// ReactionCommand 对已有消息回应表情。目标消息以 remote-message key 寻址。
type ReactionCommand struct {
	Recipient Recipient
	MessageID string
	Reaction  string
}

func (c ReactionCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(c.MessageID) == "" {
		return Request{}, newValidationError("message_id 不能为空")
	}
	body := map[string]interface{}{
		"key": map[string]interface{}{
			"remoteJid": remoteJID(number),
			"id":        c.MessageID,
		},
		"reaction": c.Reaction,
	}
	return Request{Method: "POST", Path: endpointSendReaction, Body: body}, nil
}

// remoteJID 为裸手机号补齐 @s.whatsapp.net 后缀；已带域名后缀的地址原样返回。
func remoteJID(number string) string {
	if strings.Contains(number, "@") {
		return number
	}
	return number + UserJIDSuffix
}

// PollCommand 发送投票。Options 为用户输入的逗号分隔选项串。
type PollCommand struct {
	Recipient     Recipient
	Name          string
	Options       string
	MaxSelections int
	Delay         int
}

func (c PollCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	options := ParsePollOptions(c.Options)
	if len(options) == 0 {
		return Request{}, newValidationError("poll_options 不能为空")
	}
	maxSelections := c.MaxSelections
	if maxSelections <= 0 {
		maxSelections = 1
	}
	body := map[string]interface{}{
		"number":          number,
		"name":            c.Name,
		"selectableCount": maxSelections,
		"values":          options,
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendPoll, Body: body}, nil
}

// ListCommand 发送列表消息。
type ListCommand struct {
	Recipient   Recipient
	Title       string
	Description string
	ButtonText  string
	Sections    []map[string]interface{}
	Footer      string
	Delay       int
}

func (c ListCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	body := map[string]interface{}{
		"number":      number,
		"title":       c.Title,
		"description": c.Description,
		"buttonText":  c.ButtonText,
		"sections":    c.Sections,
	}
	if c.Footer != "" {
		body["footerText"] = c.Footer
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendList, Body: body}, nil
}

// ButtonsCommand 发送按钮消息。
type ButtonsCommand struct {
	Recipient   Recipient
	Title       string
	Description string
	Buttons     []map[string]interface{}
	Footer      string
	Delay       int
}

func (c ButtonsCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	body := map[string]interface{}{
		"number":      number,
		"title":       c.Title,
		"description": c.Description,
		"buttons":     c.Buttons,
	}
	if c.Footer != "" {
		body["footerText"] = c.Footer
	}
	if c.Delay > 0 {
		body["delay"] = c.Delay
	}
	return Request{Method: "POST", Path: endpointSendButtons, Body: body}, nil
}

// CheckNumbersCommand 校验一组手机号是否注册了 WhatsApp。
type CheckNumbersCommand struct {
	Numbers []string
}

func (c CheckNumbersCommand) Request() (Request, error) {
	if len(c.Numbers) == 0 {
		return Request{}, newValidationError("numbers 不能为空")
	}
	return Request{
		Method: "POST",
		Path:   endpointCheckNumbers,
		Body:   map[string]interface{}{"numbers": c.Numbers},
	}, nil
}

// MarkReadCommand 将一条消息标记为已读。
type MarkReadCommand struct {
	RemoteJID string
	MessageID string
}

func (c MarkReadCommand) Request() (Request, error) {
	if strings.TrimSpace(c.RemoteJID) == "" {
		return Request{}, newValidationError("remote_jid 不能为空")
	}
	if strings.TrimSpace(c.MessageID) == "" {
		return Request{}, newValidationError("message_id 不能为空")
	}
	body := map[string]interface{}{
		"readMessages": []map[string]interface{}{
			{
				"remoteJid": c.RemoteJID,
				"id":        c.MessageID,
			},
		},
	}
	return Request{Method: "POST", Path: endpointMarkMessageRead, Body: body}, nil
}

// PresenceCommand 发送在线状态（输入中、录音中等）。Delay 缺省 1000ms。
type PresenceCommand struct {
	Recipient Recipient
	Presence  string
	Delay     int
}

func (c PresenceCommand) Request() (Request, error) {
	number, err := c.Recipient.Resolve()
	if err != nil {
		return Request{}, err
	}
	switch c.Presence {
	case PresenceAvailable, PresenceComposing, PresenceRecording, PresencePaused:
	default:
		return Request{}, newValidationError("presence 不合法（仅支持 available/composing/recording/paused）")
	}
	delay := c.Delay
	if delay <= 0 {
		delay = 1000
	}
	body := map[string]interface{}{
		"number":   number,
		"presence": c.Presence,
		"delay":    delay,
	}
	return Request{Method: "POST", Path: endpointSendPresence, Body: body}, nil
}

// ProfilePictureCommand 获取联系人头像地址。
type ProfilePictureCommand struct {
	Number string
}

func (c ProfilePictureCommand) Request() (Request, error) {
	if strings.TrimSpace(c.Number) == "" {
		return Request{}, newValidationError("phone_number 不能为空")
	}
	return Request{
		Method: "POST",
		Path:   endpointFetchProfilePicture,
		Body:   map[string]interface{}{"number": c.Number},
	}, nil
}

// ProfileCommand 获取联系人资料。
type ProfileCommand struct {
	Number string
}

func (c ProfileCommand) Request() (Request, error) {
	if strings.TrimSpace(c.Number) == "" {
		return Request{}, newValidationError("phone_number 不能为空")
	}
	return Request{
		Method: "POST",
		Path:   endpointFetchProfile,
		Body:   map[string]interface{}{"number": c.Number},
	}, nil
}

// ConnectionStateCommand 查询实例连接状态。
type ConnectionStateCommand struct{}

func (ConnectionStateCommand) Request() (Request, error) {
	return Request{Method: "GET", Path: endpointConnectionState}, nil
}

// FetchGroupsCommand 拉取实例加入的全部群组。
// getParticipants 查询参数必须显式出现（API 要求）。
type FetchGroupsCommand struct {
	GetParticipants bool
}

func (c FetchGroupsCommand) Request() (Request, error) {
	q := url.Values{}
	if c.GetParticipants {
		q.Set("getParticipants", "true")
	} else {
		q.Set("getParticipants", "false")
	}
	return Request{Method: "GET", Path: endpointFetchAllGroups, Query: q}, nil
}
