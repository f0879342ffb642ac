package app

// refresher.go 负责刷新式命令：拉取远端状态、写入状态缓存、发布变更通知。
// 同一实例同一数据集的并发刷新经 singleflight 合并为一次请求；
// 更强的顺序保证由调用方自行串行化。
import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/zcw199604/evolution-bridge/internal/notify"
)

type Refresher struct {
	notifier *notify.Notifier

	sf singleflight.Group
}

func NewRefresher(notifier *notify.Notifier) *Refresher {
	return &Refresher{notifier: notifier}
}

// RefreshGroups 拉取群组列表并整体替换缓存数据集，成功后发布一次通知，返回群组数量。
func (r *Refresher) RefreshGroups(ctx context.Context, ins *Instance) (int, error) {
	v, err, shared := r.sf.Do(ins.ID+"/groups", func() (interface{}, error) {
		groups, err := ins.Client.FetchAllGroups(ctx, false)
		if err != nil {
			slog.Error("刷新群组失败", "instance", ins.ID, "error", err)
			return nil, err
		}
		if err := ins.Store.SaveGroups(groups); err != nil {
			slog.Error("群组写入状态缓存失败", "instance", ins.ID, "error", err)
			return nil, err
		}
		r.notifier.PublishGroupsUpdated(ins.ID, len(groups))
		slog.Info("群组刷新成功", "instance", ins.ID, "groups_count", len(groups))
		return len(groups), nil
	})
	if err != nil {
		return 0, err
	}
	if shared {
		slog.Debug("群组刷新请求已合并", "instance", ins.ID)
	}
	count, _ := v.(int)
	return count, nil
}

// RefreshConnection 拉取连接状态与实例信息并替换缓存数据集，成功后发布一次通知，返回连接状态。
func (r *Refresher) RefreshConnection(ctx context.Context, ins *Instance) (string, error) {
	v, err, shared := r.sf.Do(ins.ID+"/connection", func() (interface{}, error) {
		info, err := ins.Client.InstanceInfo(ctx)
		if err != nil {
			slog.Error("刷新连接状态失败", "instance", ins.ID, "error", err)
			return nil, err
		}
		if err := ins.Store.SaveConnectionState(info.State, map[string]interface{}{
			"state":               info.State,
			"owner":               info.Owner,
			"profile_name":        info.ProfileName,
			"profile_picture_url": info.ProfilePictureURL,
			"phone_number":        info.PhoneNumber,
		}); err != nil {
			slog.Error("连接状态写入状态缓存失败", "instance", ins.ID, "error", err)
			return nil, err
		}
		r.notifier.PublishConnectionUpdated(ins.ID, info.State)
		slog.Info("连接状态刷新成功", "instance", ins.ID, "state", info.State)
		return info.State, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		slog.Debug("连接状态刷新请求已合并", "instance", ins.ID)
	}
	state, _ := v.(string)
	return state, nil
}
