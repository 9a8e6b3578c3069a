package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "Perform hand hygiene before and after resident contact.",
	"medium": `The facility must establish and maintain an infection prevention and
        control program designed to provide a safe, sanitary and comfortable
        environment and to help prevent the development and transmission of
        communicable diseases and infections. Staff perform hand hygiene before
        and after each resident contact and after removing gloves.`,
	"long": strings.Repeat(`Assess fall risk on admission, quarterly, after any fall and
        after a significant change in condition. Interventions include low beds,
        floor mats, hip protectors, non-skid footwear and scheduled toileting.
        Review medications that increase fall risk such as sedatives, antipsychotics
        and antihypertensives with the consultant pharmacist. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkTerms(b *testing.B) {
	for _, size := range []int{10, 100, 1000, 5000} {
		base := "hand hygiene infection control resident "
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Terms(text)
			}
		})
	}
}
