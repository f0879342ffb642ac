package app

// instance.go 定义每实例上下文对象：一个实例一份凭据、一个客户端与一份状态缓存。
// 多实例各自独立，不共享任何进程级注册表。
import (
	"github.com/zcw199604/evolution-bridge/internal/evolution"
	"github.com/zcw199604/evolution-bridge/internal/store"
)

type Instance struct {
	ID     string
	Client *evolution.Client
	Store  *store.Store
}
