package scope

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	timeFrameKind     = "time"
	spectralFrameKind = "spectral"
)

func encodeTimeFrame(frame *TimeFrame) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"kind":      timeFrameKind,
		"stream":    string(frame.Stream),
		"timestamp": frame.Timestamp.Format(time.RFC3339Nano),
		"from_time": frame.FromTime,
		"to_time":   frame.ToTime,
		"times":     encodeValues(frame.Times),
		"values":    encodeValues(frame.Values),
	})
}

func encodeSpectralFrame(frame *SpectralFrame) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"kind":              spectralFrameKind,
		"stream":            string(frame.Stream),
		"timestamp":         frame.Timestamp.Format(time.RFC3339Nano),
		"time":              frame.Time,
		"from_frequency":    frame.FromFrequency,
		"to_frequency":      frame.ToFrequency,
		"values":            encodeValues(frame.Values),
		"frequency_markers": encodeMarkers(frame.FrequencyMarkers),
		"magnitude_markers": encodeMarkers(frame.MagnitudeMarkers),
	})
}

func encodeValues(values []float64) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func encodeMarkers(markers map[MarkerID]float64) map[string]any {
	result := make(map[string]any, len(markers))
	for marker, value := range markers {
		result[string(marker)] = value
	}
	return result
}

// decodeFrame returns either a *TimeFrame or a *SpectralFrame.
func decodeFrame(frame *structpb.Struct) (any, error) {
	fields := frame.GetFields()
	header := Frame{
		Stream: StreamID(fields["stream"].GetStringValue()),
	}
	if timestamp := fields["timestamp"].GetStringValue(); timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid frame timestamp: %w", err)
		}
		header.Timestamp = t
	}

	switch kind := fields["kind"].GetStringValue(); kind {
	case timeFrameKind:
		return &TimeFrame{
			Frame:    header,
			FromTime: fields["from_time"].GetNumberValue(),
			ToTime:   fields["to_time"].GetNumberValue(),
			Times:    decodeValues(fields["times"]),
			Values:   decodeValues(fields["values"]),
		}, nil
	case spectralFrameKind:
		return &SpectralFrame{
			Frame:            header,
			Time:             fields["time"].GetNumberValue(),
			FromFrequency:    fields["from_frequency"].GetNumberValue(),
			ToFrequency:      fields["to_frequency"].GetNumberValue(),
			Values:           decodeValues(fields["values"]),
			FrequencyMarkers: decodeMarkers(fields["frequency_markers"]),
			MagnitudeMarkers: decodeMarkers(fields["magnitude_markers"]),
		}, nil
	default:
		return nil, fmt.Errorf("unknown frame kind %q", kind)
	}
}

func decodeValues(value *structpb.Value) []float64 {
	list := value.GetListValue().GetValues()
	result := make([]float64, len(list))
	for i, v := range list {
		result[i] = v.GetNumberValue()
	}
	return result
}

func decodeMarkers(value *structpb.Value) map[MarkerID]float64 {
	fields := value.GetStructValue().GetFields()
	result := make(map[MarkerID]float64, len(fields))
	for marker, v := range fields {
		result[MarkerID(marker)] = v.GetNumberValue()
	}
	return result
}
