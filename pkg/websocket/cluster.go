package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging"
	"github.com/sirupsen/logrus"
)

// clusterEnvelope 节点间转发的事件
type clusterEnvelope struct {
	Node     string          `json:"node"`
	Identity string          `json:"identity"`
	Data     json.RawMessage `json:"data"`
}

// EnableCluster 通过 bus 与其他节点互相转发事件。
// 每个节点发布自己的发送，并把其他节点的事件投递到本地会话。
func (h *Hub) EnableCluster(bus messaging.Bus) error {
	if h.config.ClusterNodeID == "" {
		return fmt.Errorf("cluster node id is required")
	}
	unsubscribe, err := bus.Subscribe(ClusterSubjectPrefix+">", h.onClusterMessage)
	if err != nil {
		return err
	}
	h.bus = bus
	h.unsubscribe = unsubscribe
	logrus.Infof("WebSocket集群模式已启用, 节点: %s", h.config.ClusterNodeID)
	return nil
}

func (h *Hub) publish(identity string, data []byte) error {
	payload, err := json.Marshal(&clusterEnvelope{
		Node:     h.config.ClusterNodeID,
		Identity: identity,
		Data:     data,
	})
	if err != nil {
		return err
	}
	return h.bus.Publish(ClusterSubjectPrefix+identity, payload)
}

func (h *Hub) onClusterMessage(subject string, payload []byte) {
	var env clusterEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("集群消息解析失败 %s: %v", subject, err)
		return
	}
	if env.Node == h.config.ClusterNodeID {
		return
	}
	n := h.deliverLocal(env.Identity, env.Data)
	logrus.Debugf("集群事件 %s 来自 %s, 本地投递 %d", env.Identity, env.Node, n)
}
