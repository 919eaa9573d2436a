package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image/color"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"

	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
	"github.com/devforge-org/devforge-backend/internal/utils"
)

const avatarSize = 512

var defaultAvatarColors = []color.NRGBA{
	{R: 0x1f, G: 0x6f, B: 0xeb, A: 0xff},
	{R: 0x8a, G: 0x3f, B: 0xfc, A: 0xff},
	{R: 0xd1, G: 0x24, B: 0x2f, A: 0xff},
	{R: 0x1a, G: 0x7f, B: 0x37, A: 0xff},
	{R: 0xbf, G: 0x87, B: 0x00, A: 0xff},
	{R: 0x0e, G: 0x8a, B: 0x16, A: 0xff},
	{R: 0xbc, G: 0x4c, B: 0x00, A: 0xff},
	{R: 0x57, G: 0x60, B: 0x6a, A: 0xff},
}

type AvatarService interface {
	GenerateUserAvatar(user *types.User) ([]byte, error)
	CreateAndUploadUserAvatar(ctx context.Context, user *types.User) error
}

type avatarService struct {
	log           *logger.Logger
	bucket        bucket.Bucket
	bgColors      []color.NRGBA
	fontFace      font.Face
	publicBaseURL string
}

func NewAvatarService(log *logger.Logger, b bucket.Bucket, cfg config.AvatarConfig, publicBaseURL string) (AvatarService, error) {
	serviceLog := log.With("service", "AvatarService")

	bgColors := defaultAvatarColors
	if cfg.ColorsPath != "" {
		serviceLog.Info("Loading avatar colors from JSON file", "path", cfg.ColorsPath)
		loaded, err := loadColorsFromFile(cfg.ColorsPath)
		if err != nil {
			return nil, fmt.Errorf("could not load avatar colors: %w", err)
		}
		if len(loaded) > 0 {
			bgColors = loaded
		}
	}

	fontBytes := gobold.TTF
	if cfg.FontPath != "" {
		serviceLog.Info("Loading avatar font from TTF file", "font", cfg.FontPath)
		raw, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		fontBytes = raw
	}
	face, err := loadFontFace(fontBytes, 206)
	if err != nil {
		return nil, fmt.Errorf("could not load avatar font: %w", err)
	}

	return &avatarService{
		log:           serviceLog,
		bucket:        b,
		bgColors:      bgColors,
		fontFace:      face,
		publicBaseURL: publicBaseURL,
	}, nil
}

func AvatarKey(user *types.User) string {
	return fmt.Sprintf("avatars/%s.png", user.ID.String())
}

func (as *avatarService) CreateAndUploadUserAvatar(ctx context.Context, user *types.User) error {
	png, err := as.GenerateUserAvatar(user)
	if err != nil {
		return err
	}
	key := AvatarKey(user)
	if err := as.bucket.Upload(ctx, key, bytes.NewReader(png), int64(len(png)), "image/png"); err != nil {
		return fmt.Errorf("failed to upload user avatar: %w", err)
	}
	user.AvatarBucketKey = key
	user.AvatarURL = fmt.Sprintf("%s/api/users/%s/avatar", as.publicBaseURL, user.ID.String())
	return nil
}

// GenerateUserAvatar draws white initials on a round background. The color is
// picked from the user id so regenerating gives the same image.
func (as *avatarService) GenerateUserAvatar(user *types.User) ([]byte, error) {
	dc := gg.NewContext(avatarSize, avatarSize)
	dc.DrawCircle(avatarSize/2, avatarSize/2, avatarSize/2)
	dc.Clip()

	dc.SetColor(as.colorFor(user.ID.String()))
	dc.DrawRectangle(0, 0, avatarSize, avatarSize)
	dc.Fill()

	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	dc.SetFontFace(as.fontFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(utils.Initials(name), avatarSize/2, avatarSize/2, 0.5, 0.35)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (as *avatarService) colorFor(seed string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return as.bgColors[int(h.Sum32()%uint32(len(as.bgColors)))]
}

func loadColorsFromFile(jsonPath string) ([]color.NRGBA, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read file error: %w", err)
	}
	var colors []color.NRGBA
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return colors, nil
}

func loadFontFace(fontBytes []byte, size float64) (font.Face, error) {
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
