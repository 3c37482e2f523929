package taskqueue

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	sharedProcessor     *CallbackProcessor
	sharedProcessorOnce sync.Once
)

// GetSharedCallbackProcessor 返回单例的回调处理器实例
// API层和服务层共用一个处理器，保证注册的处理函数一致
func GetSharedCallbackProcessor(queue Queue, logger *logrus.Logger) *CallbackProcessor {
	sharedProcessorOnce.Do(func() {
		sharedProcessor = NewCallbackProcessor(queue, logger)
	})
	return sharedProcessor
}
