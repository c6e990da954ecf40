package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAnalyzeClassFiles() string {
	return `Counts local-variable accesses, conditional branches and unconditional jumps in the method bodies of compiled JVM class files.

USE WHEN:
- Comparing the control-flow weight of classes in a build output directory
- Finding methods with many branches before reading their source
- Checking whether a refactor changed the bytecode shape of a class

INTERPRETING RESULTS:
- variable_accesses counts primitive and reference stores plus primitive loads (aload is not counted)
- conditional_branches counts if* opcodes, including ifnull and ifnonnull
- loop_markers counts goto and goto_w, which approximate loop back-edges
- skipped methods failed to decode; their counts are excluded and a warning explains why
- p90 values show the 90th percentile per file across the analysed set

METRICS RETURNED:
- Per-file: class name, version, counts, distinct opcode count, methods (optional)
- Per-method: signature, code length, instruction count, counts
- Summary: totals, mean, p90 and max per category, failed files`
}

func describeSummarizeClass() string {
	return `Prints the three-line instruction summary for a single class file.

USE WHEN:
- Quickly checking one class without a full report
- Verifying a freshly compiled class

INTERPRETING RESULTS:
- Lines are always in the order: variable declarations, conditional branches, loop opcodes
- A failure is reported as "Error analyzing file: <reason>"

METRICS RETURNED:
- Variable declarations, conditional branches and loop opcode counts`
}

func describeDescribeOpcode() string {
	return `Looks up a JVM opcode by mnemonic (e.g. "goto_w") or number (e.g. "167" or "0xa7").

USE WHEN:
- Checking which counting category an instruction falls into
- Decoding a raw opcode byte seen in a hex dump

INTERPRETING RESULTS:
- category is one of variable_access, conditional_branch, loop_marker or none
- operand_bytes is -1 for tableswitch, lookupswitch and wide, whose length depends on the stream

METRICS RETURNED:
- opcode number, hex form, mnemonic, category, operand byte count`
}
