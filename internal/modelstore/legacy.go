package modelstore

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/svm"
)

// LegacyLoad reads the single-file concatenated format used before the
// per-class-file-plus-manifest layout: num_classes:u32 | dimension:u32,
// followed by num_classes records of class_id:i32 | weights:[f64;D] |
// bias:f64. Unlike the current layout this file has no separate
// manifest to fall back on, so any read error is ModelCorrupt rather
// than ModelNotLoaded.
func LegacyLoad(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, apperr.Wrap(apperr.KindModelCorrupt, err, "modelstore: legacy read")
	}
	if len(data) < 8 {
		return Model{}, apperr.New(apperr.KindModelCorrupt, "modelstore: legacy file too short")
	}

	numClasses := int(binary.LittleEndian.Uint32(data[0:4]))
	dimension := int(binary.LittleEndian.Uint32(data[4:8]))
	recordSize := 4 + 8*dimension + 8
	offset := 8

	classifiers := make(map[int32]svm.Classifier, numClasses)
	classes := make([]int32, 0, numClasses)

	for range numClasses {
		if offset+recordSize > len(data) {
			return Model{}, apperr.New(apperr.KindModelCorrupt, "modelstore: legacy file truncated")
		}
		record := data[offset : offset+recordSize]
		classID := int32(binary.LittleEndian.Uint32(record[0:4]))
		weights := make([]float64, dimension)
		for i := range weights {
			weights[i] = math.Float64frombits(binary.LittleEndian.Uint64(record[4+8*i : 12+8*i]))
		}
		bias := math.Float64frombits(binary.LittleEndian.Uint64(record[len(record)-8:]))

		classifiers[classID] = svm.Classifier{ClassID: classID, Weights: weights, Bias: bias}
		classes = append(classes, classID)
		offset += recordSize
	}

	return Model{Dimension: dimension, Classes: classes, Classifiers: classifiers}, nil
}
