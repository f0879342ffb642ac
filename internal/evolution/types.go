package evolution

// types.go 定义网关响应的数据结构。
import "strings"

// Group 为群组列表项（/group/fetchAllGroups）。
type Group struct {
	ID           string             `json:"id"`
	Subject      string             `json:"subject"`
	SubjectOwner string             `json:"subjectOwner,omitempty"`
	Owner        string             `json:"owner,omitempty"`
	Desc         string             `json:"desc,omitempty"`
	Size         int                `json:"size,omitempty"`
	Creation     int64              `json:"creation,omitempty"`
	Participants []GroupParticipant `json:"participants,omitempty"`
}

type GroupParticipant struct {
	ID    string `json:"id"`
	Admin string `json:"admin,omitempty"`
}

// ConnectionState 为 /instance/connectionState 的响应。
type ConnectionState struct {
	Instance InstanceState `json:"instance"`
}

type InstanceState struct {
	InstanceName      string `json:"instanceName"`
	State             string `json:"state"`
	Owner             string `json:"owner"`
	ProfileName       string `json:"profileName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

// InstanceInfo 为由连接状态响应派生的实例概要信息。
type InstanceInfo struct {
	State             string `json:"state"`
	Owner             string `json:"owner"`
	ProfileName       string `json:"profile_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	PhoneNumber       string `json:"phone_number"`
}

// newInstanceInfo 从连接状态响应派生实例信息；手机号为 owner 去掉 JID 后缀。
func newInstanceInfo(cs ConnectionState) InstanceInfo {
	state := cs.Instance.State
	if state == "" {
		state = "unknown"
	}
	return InstanceInfo{
		State:             state,
		Owner:             cs.Instance.Owner,
		ProfileName:       cs.Instance.ProfileName,
		ProfilePictureURL: cs.Instance.ProfilePictureURL,
		PhoneNumber:       strings.TrimSuffix(cs.Instance.Owner, UserJIDSuffix),
	}
}
