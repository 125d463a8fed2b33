package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 item/list/命中状态字段，供请求处理日志复用。
func RequestFields(itemID, listID string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"item_id":   itemID,
		"list_id":   listID,
		"cache_hit": cacheHit,
	}
}

// PipelineFields 标记流水线当前阶段，配合 RequestFields 输出统一的运行日志。
func PipelineFields(itemID, state string) logrus.Fields {
	return logrus.Fields{
		"item_id": itemID,
		"state":   state,
	}
}
