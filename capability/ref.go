package capability

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/taskroute/taskroute/types"
)

// Ref 标识一个具体能力：提供者名称加该提供者内的能力名称。
// 线上格式为 "provider:capability"，在第一个冒号处拆分，
// 因此能力名称自身可以包含冒号。
type Ref struct {
	Provider string
	Name     string
}

// ParseRef 解析 "provider:capability" 形式的能力引用。
// 缺少冒号或任一侧为空都是解析错误，不做任何兜底推断。
func ParseRef(s string) (Ref, error) {
	provider, name, found := strings.Cut(s, ":")
	if !found || provider == "" || name == "" {
		return Ref{}, types.NewError(types.ErrInvalidRef,
			fmt.Sprintf("invalid capability ref %q: expected provider:capability", s)).
			WithHTTPStatus(http.StatusBadRequest)
	}
	return Ref{Provider: provider, Name: name}, nil
}

// String 还原 "provider:capability" 形式。
func (r Ref) String() string {
	return r.Provider + ":" + r.Name
}
