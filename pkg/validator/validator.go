package validator

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"lcs-classroom/backend/internal/model"
)

// YouTube 视频 ID：11 位 [A-Za-z0-9_-]
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Register 在 gin 默认的 binding 引擎上注册自定义校验规则
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding 引擎不是 validator/v10")
	}
	return RegisterOn(v)
}

// RegisterOn 在指定 validator 实例上注册自定义规则
//   - class_date  YYYY-MM-DD
//   - class_time  "10:00 AM" 或 "14:30"
//   - video_ref   YouTube 视频 ID 或链接
func RegisterOn(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"class_date": func(fl validator.FieldLevel) bool {
			_, err := model.ParseClassDate(fl.Field().String())
			return err == nil
		},
		"class_time": func(fl validator.FieldLevel) bool {
			_, err := model.ParseClock(fl.Field().String())
			return err == nil
		},
		"video_ref": func(fl validator.FieldLevel) bool {
			_, ok := NormalizeVideoRef(fl.Field().String())
			return ok
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeVideoRef 将视频 ID 或 YouTube 链接归一化为 11 位视频 ID
// 支持 watch?v=、youtu.be/、/embed/、/shorts/ 形式
func NormalizeVideoRef(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) == 2 && (segments[0] == "embed" || segments[0] == "shorts" || segments[0] == "live") {
			id = segments[1]
		}
	default:
		return "", false
	}

	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}
