package gdocai

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ToJSON converts various types to a pretty-printed JSON string
// It handles both protocol buffer messages and regular Go structs
func ToJSON(data interface{}) (string, error) {
	switch v := data.(type) {
	case proto.Message:
		jsonData, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(jsonData), nil

	default:
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonData), nil
	}
}

// ExtractImageFromPage pulls out the image data from a Document AI page
func ExtractImageFromPage(page *documentaipb.Document_Page) ([]byte, error) {
	if page == nil {
		return nil, fmt.Errorf("no documentai page provided")
	}

	image := page.GetImage()
	if image == nil {
		return nil, fmt.Errorf("no image found in documentai page %d", page.GetPageNumber())
	}

	content := image.GetContent()
	if len(content) == 0 {
		return nil, fmt.Errorf("image content is empty")
	}

	return content, nil
}
