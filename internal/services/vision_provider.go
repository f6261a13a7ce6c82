package services

import (
	"context"
	"fmt"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/openshelf/openshelf-backend/internal/logger"
)

// VisionProviderService runs OCR on image uploads so the text pipeline can
// treat images and documents uniformly.
type VisionProviderService interface {
	OCRImageBytes(ctx context.Context, img []byte) (string, error)
	Close() error
}

type visionProviderService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVisionProviderService(log *logger.Logger) (VisionProviderService, error) {
	serviceLog := log.With("service", "VisionProviderService")
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")

	ctx := context.Background()
	var client *vision.ImageAnnotatorClient
	var err error
	if saPath != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(saPath))
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return &visionProviderService{log: serviceLog, client: client}, nil
}

func (vs *visionProviderService) OCRImageBytes(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("empty image")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}

	resp, err := vs.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision annotate failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("vision returned no responses")
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision annotate error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return r.FullTextAnnotation.GetText(), nil
}

func (vs *visionProviderService) Close() error {
	return vs.client.Close()
}
